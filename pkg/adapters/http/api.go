package http

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

//go:embed openapi.yaml
var specYAML []byte

var (
	swaggerOnce sync.Once
	swaggerDoc  *openapi3.T
	swaggerErr  error
)

// rawSpec returns the embedded API document.
func rawSpec() ([]byte, error) {
	return specYAML, nil
}

// GetSwagger loads and validates the embedded API document.
func GetSwagger() (*openapi3.T, error) {
	swaggerOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(specYAML)
		if err != nil {
			swaggerErr = fmt.Errorf("failed to load API document: %w", err)
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			swaggerErr = fmt.Errorf("invalid API document: %w", err)
			return
		}
		swaggerDoc = doc
	})
	return swaggerDoc, swaggerErr
}

// RetryParams are the query parameters of POST /sessions/{session}/retry.
type RetryParams struct {
	Target *string
}

// SubscribeEventsParams are the query parameters of GET /sessions/{session}/events.
type SubscribeEventsParams struct {
	Watch *string
}

// ServerInterface lists the operations of the API document.
type ServerInterface interface {
	GetHealth(w http.ResponseWriter, r *http.Request)
	GetInfo(w http.ResponseWriter, r *http.Request)
	ListSessions(w http.ResponseWriter, r *http.Request)
	GetSession(w http.ResponseWriter, r *http.Request, session string)
	CloseSession(w http.ResponseWriter, r *http.Request, session string)
	SetSubject(w http.ResponseWriter, r *http.Request, session string)
	RequestTrajectory(w http.ResponseWriter, r *http.Request, session string)
	ClearTrajectory(w http.ResponseWriter, r *http.Request, session string)
	Retry(w http.ResponseWriter, r *http.Request, session string, params RetryParams)
	ReportSurface(w http.ResponseWriter, r *http.Request, session string)
	SubscribeEvents(w http.ResponseWriter, r *http.Request, session string, params SubscribeEventsParams)
	GetCoordinates(w http.ResponseWriter, r *http.Request, session string)
	GetModel(w http.ResponseWriter, r *http.Request, session string)
}

// wrapper binds path and query parameters before calling the handler.
type wrapper struct {
	handler ServerInterface
}

func (sw *wrapper) withSession(fn func(w http.ResponseWriter, r *http.Request, session string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var session string
		err := runtime.BindStyledParameterWithOptions("simple", "session", chi.URLParam(r, "session"), &session,
			runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid format for parameter session: %v", err), http.StatusBadRequest)
			return
		}
		fn(w, r, session)
	}
}

func (sw *wrapper) retry(w http.ResponseWriter, r *http.Request, session string) {
	var params RetryParams
	if err := runtime.BindQueryParameter("form", true, false, "target", r.URL.Query(), &params.Target); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter target: %v", err), http.StatusBadRequest)
		return
	}
	sw.handler.Retry(w, r, session, params)
}

func (sw *wrapper) subscribeEvents(w http.ResponseWriter, r *http.Request, session string) {
	var params SubscribeEventsParams
	if err := runtime.BindQueryParameter("form", true, false, "watch", r.URL.Query(), &params.Watch); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter watch: %v", err), http.StatusBadRequest)
		return
	}
	sw.handler.SubscribeEvents(w, r, session, params)
}

// HandlerFromMux registers the API operations of si on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	sw := &wrapper{handler: si}

	r.Get("/health", si.GetHealth)
	r.Get("/info", si.GetInfo)
	r.Get("/sessions", si.ListSessions)
	r.Route("/sessions/{session}", func(r chi.Router) {
		r.Get("/", sw.withSession(si.GetSession))
		r.Delete("/", sw.withSession(si.CloseSession))
		r.Put("/subject", sw.withSession(si.SetSubject))
		r.Put("/trajectory", sw.withSession(si.RequestTrajectory))
		r.Delete("/trajectory", sw.withSession(si.ClearTrajectory))
		r.Post("/retry", sw.withSession(sw.retry))
		r.Post("/surface", sw.withSession(si.ReportSurface))
		r.Get("/events", sw.withSession(sw.subscribeEvents))
		r.Get("/coordinates", sw.withSession(si.GetCoordinates))
		r.Get("/model", sw.withSession(si.GetModel))
	})
	return r
}
