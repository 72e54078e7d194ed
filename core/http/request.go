package http

import "sync"

// Request is the parsed request line of a single connection.
// Fields are copied out of the receive buffer, so a Request stays valid
// after the buffer goes back to its pool.
type Request struct {
	Method string
	Path   string
	Query  string
}

var requestPool = sync.Pool{
	New: func() any {
		return &Request{}
	},
}

func AcquireRequest() *Request {
	return requestPool.Get().(*Request)
}

// Reset clears the request for reuse
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.Query = ""
}

func ReleaseRequest(req *Request) {
	if req == nil {
		return
	}
	req.Reset()
	requestPool.Put(req)
}

// IsRetrieval reports whether the method asks for a resource
func (r *Request) IsRetrieval() bool {
	return r.Method == MethodGet
}
