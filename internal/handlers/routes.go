package handlers

import "net/http"

// BasePath prefixes every resource route.
const BasePath = "/rest"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	users := UserHandler{Users: deps.Users}
	shorts := ShortHandler{Shorts: deps.Shorts}
	blobs := BlobHandler{Blobs: deps.Blobs, MaxBytes: deps.MaxBlobBytes}
	auth := AuthHandler{Sessions: deps.Sessions, Limiter: deps.LoginLimiter}

	mux.HandleFunc("/healthz", health.Handle)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.HandleFunc("POST "+BasePath+"/users", users.Create)
	mux.HandleFunc("GET "+BasePath+"/users/{$}", users.Search)
	mux.HandleFunc("GET "+BasePath+"/users/{userId}", users.Get)
	mux.HandleFunc("PUT "+BasePath+"/users/{userId}", users.Update)
	mux.HandleFunc("DELETE "+BasePath+"/users/{userId}", users.Delete)

	mux.HandleFunc("POST "+BasePath+"/shorts/{userId}", shorts.Create)
	mux.HandleFunc("GET "+BasePath+"/shorts/{shortId}", shorts.Get)
	mux.HandleFunc("DELETE "+BasePath+"/shorts/{shortId}", shorts.Delete)
	mux.HandleFunc("GET "+BasePath+"/shorts/{userId}/shorts", shorts.List)
	mux.HandleFunc("DELETE "+BasePath+"/shorts/{userId}/shorts", shorts.DeleteAll)
	mux.HandleFunc("POST "+BasePath+"/shorts/{userId1}/{userId2}/followers", shorts.Follow)
	mux.HandleFunc("GET "+BasePath+"/shorts/{userId}/followers", shorts.Followers)
	mux.HandleFunc("POST "+BasePath+"/shorts/{shortId}/{userId}/likes", shorts.Like)
	mux.HandleFunc("GET "+BasePath+"/shorts/{shortId}/likes", shorts.Likes)
	mux.HandleFunc("GET "+BasePath+"/shorts/{userId}/feed", shorts.Feed)

	mux.HandleFunc("POST "+BasePath+"/blobs/{blobId}", blobs.Upload)
	mux.HandleFunc("GET "+BasePath+"/blobs/{blobId}", blobs.Download)
	mux.HandleFunc("DELETE "+BasePath+"/blobs/{blobId}", blobs.Delete)
	mux.HandleFunc("DELETE "+BasePath+"/blobs/{userId}/blobs", blobs.DeleteAll)

	mux.HandleFunc("GET "+BasePath+"/login", auth.Form)
	mux.HandleFunc("POST "+BasePath+"/login", auth.Login)
	mux.HandleFunc("GET "+BasePath+"/ctrl/version/{userId}", auth.Version)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users        UserService
	Shorts       ShortService
	Blobs        BlobService
	Sessions     SessionManager
	LoginLimiter RateLimiter
	Metrics      http.Handler
	MaxBlobBytes int64
}
