// Package shutdown coordinates graceful termination of the server.
//
// Components register named hooks while starting up. When SIGINT or
// SIGTERM arrives, or Trigger is called, the hooks run in reverse order
// of registration under one shared deadline:
//
//	h := shutdown.NewHandler(15*time.Second, log)
//	h.OnShutdown("store", store.Close)
//	if err := h.Wait(ctx); err != nil { ... }
package shutdown
