package analytics

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatsync/internal/app/store"
	"chatsync/internal/pkg/logx"
)

// Context describes who sent an event and from where. ServerTS, IP and Geo are
// filled in by the analytics server and left empty here.
type Context struct {
	ClientID   string
	AppVersion string
	System     *SystemInfo
	UserID     string
	IP         string
	UserAgent  string
	Geo        *GeoLocation

	// ClientTS and ServerTS are Unix milliseconds.
	ClientTS int64
	ServerTS int64
}

type SystemInfo struct {
	OS       string
	Arch     string
	Locale   string
	Timezone string
}

type GeoLocation struct {
	Country string
	Region  string
	City    string
}

// InitPlatformInfo records the operating system and architecture in the cache
// once, so later contexts read them from there.
func InitPlatformInfo(cache *store.Cache) {
	if _, ok := cache.GetString(store.KeyOS); !ok {
		if err := cache.SetString(store.KeyOS, runtime.GOOS); err != nil {
			logx.Warn("Failed to cache platform os", "error", err.Error())
		}
	}
	if _, ok := cache.GetString(store.KeyArch); !ok {
		if err := cache.SetString(store.KeyArch, runtime.GOARCH); err != nil {
			logx.Warn("Failed to cache platform arch", "error", err.Error())
		}
	}
}

// ContextBuilder assembles a fresh Context for every event from cached
// installation data and live process state.
type ContextBuilder struct {
	cache      *store.Cache
	appVersion string
	userID     func() string
	now        func() time.Time

	// guards client id generation
	mu sync.Mutex
}

// NewContextBuilder returns a builder. userID reports the signed-in user's id or "".
func NewContextBuilder(cache *store.Cache, appVersion string, userID func() string) *ContextBuilder {
	return &ContextBuilder{
		cache:      cache,
		appVersion: appVersion,
		userID:     userID,
		now:        time.Now,
	}
}

// Build returns the context for an event sent now.
func (b *ContextBuilder) Build() Context {
	osName, ok := b.cache.GetString(store.KeyOS)
	if !ok {
		osName = runtime.GOOS
	}
	arch, ok := b.cache.GetString(store.KeyArch)
	if !ok {
		arch = runtime.GOARCH
	}

	var userID string
	if b.userID != nil {
		userID = b.userID()
	}

	return Context{
		ClientID:   b.ClientID(),
		AppVersion: b.appVersion,
		UserID:     userID,
		UserAgent:  userAgent(b.appVersion, osName, arch),
		ClientTS:   b.now().UnixMilli(),
		System: &SystemInfo{
			OS:       osName,
			Arch:     arch,
			Locale:   currentLocale(),
			Timezone: currentTimezone(),
		},
	}
}

// ClientID returns the installation's id, generating and persisting it on first use.
func (b *ContextBuilder) ClientID() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id, ok := b.cache.GetString(store.KeyClientID); ok {
		return id
	}

	id := uuid.NewString()
	if err := b.cache.SetString(store.KeyClientID, id); err != nil {
		logx.Warn("Failed to persist analytics client id", "error", err.Error())
	}
	return id
}

func userAgent(version, osName, arch string) string {
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("chatsync/%s (%s; %s) %s", version, osName, arch, runtime.Version())
}

// currentLocale reads the POSIX locale variables and renders them as a BCP 47 tag.
func currentLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return normalizeLocale(v)
		}
	}
	return "en-US"
}

// normalizeLocale turns values like "de_DE.UTF-8@euro" into "de-DE".
func normalizeLocale(v string) string {
	if i := strings.IndexAny(v, ".@"); i >= 0 {
		v = v[:i]
	}
	if v == "" || v == "C" || v == "POSIX" {
		return "en-US"
	}
	return strings.ReplaceAll(v, "_", "-")
}

func currentTimezone() string {
	if tz := strings.TrimPrefix(os.Getenv("TZ"), ":"); tz != "" {
		return tz
	}
	if name := time.Local.String(); name != "Local" {
		return name
	}
	name, _ := time.Now().Zone()
	return name
}
