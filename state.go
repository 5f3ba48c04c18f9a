package main

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// progress of the run, as plain text
var state atomic.Value

func init() {
	state.Store("starting-up")
}

func stateFunc(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(state.Load().(string)))
}

func statusMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", stateFunc)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
