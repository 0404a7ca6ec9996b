package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Classes     *ClassHandler
	Instructors *InstructorHandler
	Rooms       *RoomHandler
	Middleware  []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Classes != nil {
		mux.HandleFunc("/classes", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Classes.List(w, r)
			case http.MethodPost:
				cfg.Classes.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/classes/preview", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Classes.Preview(w, r)
		})
		mux.HandleFunc("/classes/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/classes/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}
			segments := strings.Split(rest, "/")
			id := segments[0]
			ctx := ContextWithClassID(r.Context(), id)
			r = r.WithContext(ctx)

			switch {
			case len(segments) == 1:
				switch r.Method {
				case http.MethodGet:
					cfg.Classes.Get(w, r)
				case http.MethodPut:
					cfg.Classes.Update(w, r)
				case http.MethodDelete:
					cfg.Classes.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
				}
			case len(segments) == 2 && segments[1] == "detach":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Classes.Detach(w, r)
			case len(segments) == 2 && segments[1] == "calendar.ics":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Classes.Calendar(w, r)
			case len(segments) == 3 && segments[1] == "sessions" && segments[2] != "":
				if r.Method != http.MethodDelete {
					methodNotAllowed(w, http.MethodDelete)
					return
				}
				r = r.WithContext(ContextWithSessionID(r.Context(), segments[2]))
				cfg.Classes.CancelSession(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Instructors != nil {
		mux.HandleFunc("/instructors", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Instructors.List(w, r)
			case http.MethodPost:
				cfg.Instructors.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/instructors/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/instructors/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithInstructorID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodGet:
				cfg.Instructors.Get(w, r)
			case http.MethodPut:
				cfg.Instructors.Update(w, r)
			case http.MethodDelete:
				cfg.Instructors.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Rooms != nil {
		mux.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Rooms.List(w, r)
			case http.MethodPost:
				cfg.Rooms.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/rooms/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/rooms/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithRoomID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodGet:
				cfg.Rooms.Get(w, r)
			case http.MethodPut:
				cfg.Rooms.Update(w, r)
			case http.MethodDelete:
				cfg.Rooms.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
