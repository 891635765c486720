package analytics

import "google.golang.org/protobuf/encoding/protowire"

// Encode serializes ctx and ev as an AnalyticsEvent message.
func Encode(ctx Context, ev Event) []byte {
	var b []byte
	b = appendMessage(b, 1, ctx.appendFields(nil))
	b = appendMessage(b, ev.field(), ev.appendFields(nil))
	return b
}

func (c Context) appendFields(b []byte) []byte {
	b = appendString(b, 1, c.ClientID)
	b = appendString(b, 2, c.AppVersion)
	if c.System != nil {
		b = appendMessage(b, 3, c.System.appendFields(nil))
	}
	b = appendString(b, 4, c.UserID)
	b = appendString(b, 5, c.IP)
	b = appendString(b, 6, c.UserAgent)
	if c.Geo != nil {
		b = appendMessage(b, 7, c.Geo.appendFields(nil))
	}
	b = appendVarint(b, 8, uint64(c.ClientTS))
	return appendVarint(b, 9, uint64(c.ServerTS))
}

func (s SystemInfo) appendFields(b []byte) []byte {
	b = appendString(b, 1, s.OS)
	b = appendString(b, 2, s.Arch)
	b = appendString(b, 3, s.Locale)
	return appendString(b, 4, s.Timezone)
}

func (g GeoLocation) appendFields(b []byte) []byte {
	b = appendString(b, 1, g.Country)
	b = appendString(b, 2, g.Region)
	return appendString(b, 3, g.City)
}

// proto3 scalars equal to their zero value are not written.

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendMessage always writes the field so an empty oneof member stays present.
func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
