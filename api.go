package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/openrover/telerover/comms"
	"github.com/openrover/telerover/control"
	"github.com/openrover/telerover/recorder"
	"github.com/openrover/telerover/video"
)

// StatusPayload is the diagnostics snapshot the UI polls.
type StatusPayload struct {
	Link        string            `json:"link"`
	Action      string            `json:"action"`
	LastPeer    string            `json:"last_peer,omitempty"`
	Stream      video.StreamStats `json:"stream"`
	StreamError string            `json:"stream_error,omitempty"`
}

func (p *StatusPayload) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type DrivePayload struct {
	Dir string `json:"dir"`
}

func (p *DrivePayload) Bind(r *http.Request) error {
	if _, ok := control.ParseAction(p.Dir); !ok {
		return errors.New("unknown direction")
	}
	return nil
}

type ErrPayload struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrPayload) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrPayload{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "invalid request",
		ErrorText:      err.Error(),
	}
}

func ErrRender(err error) render.Renderer {
	return &ErrPayload{
		Err:            err,
		HTTPStatusCode: http.StatusUnprocessableEntity,
		StatusText:     "error rendering response",
		ErrorText:      err.Error(),
	}
}

// apiRouter wires the local diagnostics API. This is the surface the
// excluded UI shell renders from.
func apiRouter(link *comms.Link, driver *control.Driver, sup *video.Supervisor, trip *recorder.Recorder) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
			payload := &StatusPayload{
				Link:        link.State().Get().String(),
				Action:      driver.Current().Get().String(),
				LastPeer:    link.LastMessage().Get().Raw,
				Stream:      sup.Stats(),
				StreamError: sup.LastError().Get(),
			}
			render.Render(w, req, payload)
		})

		r.Post("/drive", func(w http.ResponseWriter, req *http.Request) {
			data := &DrivePayload{}
			if err := render.Bind(req, data); err != nil {
				render.Render(w, req, ErrInvalidRequest(err))
				return
			}
			action, _ := control.ParseAction(data.Dir)
			driver.Start(action)
			render.JSON(w, req, map[string]string{"status": "ok"})
		})

		r.Post("/stop", func(w http.ResponseWriter, req *http.Request) {
			driver.Stop()
			render.JSON(w, req, map[string]string{"status": "ok"})
		})

		r.Get("/log", func(w http.ResponseWriter, req *http.Request) {
			if trip == nil {
				render.JSON(w, req, []recorder.Event{})
				return
			}
			n, err := strconv.Atoi(req.URL.Query().Get("n"))
			if err != nil || n <= 0 {
				n = 50
			}
			events, err := trip.Tail(n)
			if err != nil {
				render.Render(w, req, ErrRender(err))
				return
			}
			render.JSON(w, req, events)
		})
	})

	return r
}
