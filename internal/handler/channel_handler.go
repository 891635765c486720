package handler

import (
	"net/http"
	"strings"

	"chatsync/internal/app/remote"
	"chatsync/internal/pkg/errs"
	"chatsync/internal/pkg/req"
	"chatsync/internal/pkg/resp"
)

func HandleListChannels(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{"channels": deps.Engine.Session().Channels()})
	}
}

func HandleListSingleChannels(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{"channels": deps.Engine.Session().SingleChannels()})
	}
}

type CreateChannelInput struct {
	Name    string  `json:"name"`
	Members []int64 `json:"members"`
	Public  bool    `json:"public"`
}

// HandleCreateChannel creates a channel on the chat server and adds it to the session.
func HandleCreateChannel(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateChannelInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Name = strings.TrimSpace(input.Name)
		if len(input.Members) == 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		ch, err := deps.Engine.CreateChannel(r.Context(), remote.CreateChatInput(input))
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"channel": ch})
	}
}

// HandleSelectChannel focuses a channel and returns its messages.
func HandleSelectChannel(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := req.PathInt64(r, "id")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := deps.Engine.SelectChannel(r.Context(), id); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"messages": deps.Engine.Session().ActiveChannelMessages()})
	}
}

// HandleListMessages returns a channel's messages, fetching the first page if none are held.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := req.PathInt64(r, "id")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deps.Engine.FetchMessagesForChannel(r.Context(), id)
		resp.RespondSuccess(w, r, map[string]any{"messages": deps.Engine.Session().ChannelMessages(id)})
	}
}

type SendMessageInput struct {
	Content string   `json:"content"`
	Files   []string `json:"files"`
}

// HandleSendMessage posts a message. It appears in the channel once pushed back.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := req.PathInt64(r, "id")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input SendMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := deps.Engine.SendMessage(r.Context(), id, input.Content, input.Files); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

func HandleActiveMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{"messages": deps.Engine.Session().ActiveChannelMessages()})
	}
}

// HandleGetUser looks a member up in the workspace directory.
func HandleGetUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := req.PathInt64(r, "id")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		user, ok := deps.Engine.Session().UserByID(id)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound, id))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": user})
	}
}
