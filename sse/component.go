package sse

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/smokedb/component"
)

// Component runs a Hub under the component registry.
type Component struct {
	hub  *Hub
	path string

	mu      sync.Mutex
	wg      sync.WaitGroup
	running bool
}

// ensure Component satisfies component.Component and Describable.
var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent wraps hub. path is the route clients subscribe on.
func NewComponent(hub *Hub, path string) *Component {
	return &Component{hub: hub, path: path}
}

// Hub returns the wrapped hub.
func (c *Component) Hub() *Hub { return c.hub }

func (c *Component) Name() string { return "change-feed" }

func (c *Component) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.running = true
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()
	return nil
}

func (c *Component) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hub.Stop()
	c.wg.Wait()
	c.running = false
	return nil
}

func (c *Component) Health(context.Context) component.Health {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not running"}
	}
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d subscribers, %d events dropped", c.hub.ClientCount(), c.hub.Dropped()),
	}
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Type:    "sse",
		Details: fmt.Sprintf("path=%s", c.path),
	}
}
