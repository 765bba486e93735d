package observability

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry is a no-op without a DSN.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
		BeforeSend:       scrubRequest,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// scrubRequest drops cookies and auth headers so session tokens never leave the process.
func scrubRequest(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event == nil || event.Request == nil {
		return event
	}

	event.Request.Cookies = ""
	for name := range event.Request.Headers {
		switch http.CanonicalHeaderKey(name) {
		case "Cookie", "Authorization":
			delete(event.Request.Headers, name)
		}
	}
	return event
}
