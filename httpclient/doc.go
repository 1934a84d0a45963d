// Package httpclient provides the HTTP client used by HTTP-API steps and the
// LLM collaborator: default headers, per-request auth, client-side rate
// limiting and status classification.
//
// The client never retries. Callers hand errors to ToAppError so the engine's
// retry manager can decide, using the error kind, whether another attempt is
// worthwhile.
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL:   "https://api.example.com",
//	    Timeout:   30 * time.Second,
//	    RateLimit: 10,
//	    Auth:      httpclient.BearerAuth("my-token"),
//	})
//
//	resp, err := client.Do(ctx, httpclient.Request{
//	    Method: http.MethodGet,
//	    Path:   "/users/123",
//	})
//	if err != nil {
//	    return httpclient.ToAppError("users-api", err)
//	}
package httpclient
