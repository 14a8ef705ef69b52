// Package middleware adapts goToken.Engine to net/http.
//
// A request token is located by a [Parser]. [DefaultParsers] tries the
// Authorization header, the query string, form or JSON input and finally a
// cookie, and the first non-empty candidate wins. [Guard] rejects requests
// whose token does not pass Engine.Authenticate; [Optional] lets anonymous
// requests through. Both store the decoded payload on the request context
// for [PayloadFromContext].
//
// Token checks are delegated to the Engine. This package only translates
// HTTP requests into Engine calls and results into status codes.
package middleware
