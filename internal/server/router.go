package server

import (
	"net/http"
	"strings"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Uses [http.ServeMux] internally, so paths may carry {name} wildcards read with [http.Request.PathValue].
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	handlers    map[string]map[string]http.Handler // path -> method -> wrapped handler
	methods     map[string][]string
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:         http.NewServeMux(),
		middlewares: []Middleware{},
		handlers:    make(map[string]map[string]http.Handler),
		methods:     make(map[string][]string),
	}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a handler for the specified HTTP method and path.
//
// Registering the same path for a second method shares one mux entry. Other methods get 405 with an Allow header.
// The handler is wrapped with all registered middleware.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	method = strings.ToUpper(method)
	handlers, seen := r.routes(path)
	handlers[method] = r.Apply(handler)
	r.methods[path] = append(r.methods[path], method)
	if seen {
		return
	}

	r.mux.Handle(path, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h, ok := handlers[req.Method]
		if !ok && req.Method == http.MethodHead {
			h, ok = handlers[http.MethodGet]
		}
		if !ok {
			if req.Method == http.MethodOptions {
				r.Apply(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(w, req)
				return
			}
			w.Header().Set("Allow", strings.Join(r.methods[path], ", "))
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, req)
	}))
}

func (r *BasicRouter) routes(path string) (map[string]http.Handler, bool) {
	handlers, seen := r.handlers[path]
	if !seen {
		handlers = make(map[string]http.Handler)
		r.handlers[path] = handlers
	}
	return handlers, seen
}

// Handler registers a custom Handler implementation.
//
// All routes returned by [Handler.Routes] are registered with this handler.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)

	for _, route := range handler.Routes() {
		r.mux.Handle(route, wrapped)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order (last added wraps first).
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}
