/*
Package handler provides the bridge endpoints for authentication, the session
snapshot and navigation analytics.
*/
package handler

import (
	"net/http"
	"strings"

	"chatsync/internal/app/remote"
	"chatsync/internal/pkg/errs"
	"chatsync/internal/pkg/req"
	"chatsync/internal/pkg/resp"
)

type SignupInput struct {
	Email     string `json:"email"`
	Fullname  string `json:"fullname"`
	Password  string `json:"password"`
	Workspace string `json:"workspace"`
}

// HandleSignup registers a new account and workspace and loads its state.
func HandleSignup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SignupInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Email = strings.TrimSpace(input.Email)
		input.Workspace = strings.TrimSpace(input.Workspace)
		if input.Email == "" || input.Password == "" || input.Workspace == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		user, err := deps.Engine.Signup(r.Context(), remote.SignupInput(input))
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": user})
	}
}

type SigninInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignin exchanges credentials for a session.
func HandleSignin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SigninInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Email = strings.TrimSpace(input.Email)
		if input.Email == "" || input.Password == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		user, err := deps.Engine.Signin(r.Context(), remote.SigninInput(input))
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": user})
	}
}

// HandleLogout tears the session down. The host reloads once the response is out.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Engine.Logout(r.Context())
		resp.RespondSuccess(w, r, nil)
	}
}

// HandleGetSession returns a snapshot of the session and the lifecycle state.
func HandleGetSession(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"state":   deps.Engine.State(),
			"session": deps.Engine.Session().Snapshot(),
		})
	}
}

// HandleGetWorkspace returns the name of the workspace the user is signed into.
func HandleGetWorkspace(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"name": deps.Engine.Session().WorkspaceName(),
		})
	}
}

type NavigationInput struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HandleNavigation records a route change for analytics.
func HandleNavigation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input NavigationInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deps.Engine.Navigate(input.From, input.To)
		resp.RespondSuccess(w, r, nil)
	}
}
