// Package sse streams server-sent events to subscribed HTTP clients.
//
// A Hub routes published events to clients whose topic pattern matches the
// event topic. Patterns use path.Match syntax, so "*" subscribes to every
// topic. Slow clients drop events rather than block publishers.
//
//	hub := sse.NewHub(log)
//	go hub.Run()
//	defer hub.Stop()
//
//	router.GET("/events", func(c *gin.Context) {
//	    sse.Serve(hub, c.Writer, c.Request, sse.NewClient(id, "*", 0), log)
//	})
//	hub.Publish("orders", "change", payload)
package sse
