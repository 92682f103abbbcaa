// Package httpapi exposes a smokedb database over HTTP.
//
// Records are JSON objects. Listings run through the query engine:
//
//	GET    /stores
//	GET    /stores/:store/records?where=team:x&order=-age&skip=10&take=10&distinct=true
//	GET    /stores/:store/records/:key
//	GET    /stores/:store/count?where=team:x
//	POST   /stores/:store/records         one object or an array of objects
//	PUT    /stores/:store/records/:key
//	DELETE /stores/:store/records/:key
//	GET    /changes, /stores/:store/changes   server-sent change events
//
// Writes are queued on a per-request collection and submitted before the
// response is written. When an auth secret is configured the write routes
// require an HS256 bearer token issued by TokenService.
package httpapi
