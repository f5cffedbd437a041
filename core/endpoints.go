package core

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/cors"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

const (
	DefaultAddr = ":8080"
)

type ServerOptions struct {
	Addr           string
	AllowedOrigins []string
}

func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Addr:           DefaultAddr,
		AllowedOrigins: []string{"http://localhost:3000"},
	}
}

func GetHttpServer(sc ServiceContext, options ServerOptions) *http.Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Use(cors.New(cors.Options{
		AllowedOrigins:   options.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}).Handler)

	router.Get("/api/ping", ping)
	router.Get("/api/simulations/settings", getSimulationSettings)
	router.Post("/api/simulations", func(w http.ResponseWriter, r *http.Request) { runSimulation(w, r, sc) })
	router.Post("/api/simulations/sufficiency", func(w http.ResponseWriter, r *http.Request) { runSufficiencyCheck(w, r, sc) })
	router.Get("/api/simulations/{runID}", func(w http.ResponseWriter, r *http.Request) { getSimulationRun(w, r, sc) })

	server := &http.Server{
		Addr:           options.Addr,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   2 * time.Minute, // adaptive runs near the trial ceiling take a while
		MaxHeaderBytes: 1 << 20,
	}

	return server
}

func ping(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, render.M{"message": "pong"})
}

func getSimulationSettings(w http.ResponseWriter, r *http.Request) {
	resources := m.GetSimulationSettingsResources()
	render.JSON(w, r, m.GetServiceResponseOk(&resources))
}

func runSimulation(w http.ResponseWriter, r *http.Request, sc ServiceContext) {
	// sc is a per request copy, cancelling the request cancels its trials
	sc.Context = r.Context()

	// the request body overrides the defaults field by field, an empty body
	// runs the canonical simulation
	settings := m.DefaultSimulationSettings()
	if err := render.DecodeJSON(r.Body, &settings); err != nil && !errors.Is(err, io.EOF) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, m.GetServiceResponseError(err.Error()))
		return
	}

	response, err := sc.RunSimulation(&settings)
	if err != nil {
		render.Status(r, statusForError(err))
		render.JSON(w, r, m.GetServiceResponseError(err.Error()))
		return
	}

	render.JSON(w, r, m.GetServiceResponseOk(response))
}

func runSufficiencyCheck(w http.ResponseWriter, r *http.Request, sc ServiceContext) {
	sc.Context = r.Context()

	settings := m.DefaultSufficiencySettings()
	if err := render.DecodeJSON(r.Body, &settings); err != nil && !errors.Is(err, io.EOF) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, m.GetServiceResponseError(err.Error()))
		return
	}

	response, err := sc.RunSufficiencyCheck(&settings)
	if err != nil {
		render.Status(r, statusForError(err))
		render.JSON(w, r, m.GetServiceResponseError(err.Error()))
		return
	}

	render.JSON(w, r, m.GetServiceResponseOk(response))
}

func getSimulationRun(w http.ResponseWriter, r *http.Request, sc ServiceContext) {
	sc.Context = r.Context()

	runId, err := strconv.ParseInt(chi.URLParam(r, "runID"), 10, 32)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, m.GetServiceResponseError("run id must be an integer"))
		return
	}

	details, err := sc.GetSimulationRun(int32(runId))
	if err != nil {
		render.Status(r, statusForError(err))
		render.JSON(w, r, m.GetServiceResponseError(err.Error()))
		return
	}

	render.JSON(w, r, m.GetServiceResponseOk(details))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, m.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, m.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, m.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPersistenceNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
