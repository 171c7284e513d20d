// Package timeouts defines shared timeout constants for the header service.
package timeouts

import "time"

// BackendRequest caps one REST call to the code-review backend.
const BackendRequest = 3 * time.Second

// HeaderLoad caps the full fan-out that assembles one header snapshot.
const HeaderLoad = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// PluginWait bounds how long a header load waits for expected plugins to
// register before rendering without them.
const PluginWait = 2 * time.Second

// ViewerSession is how long a viewer's header state is reused before the
// next request rebuilds it from scratch.
const ViewerSession = time.Minute
