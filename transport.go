package erpclient

import (
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// newHTTPClient assembles http.Transport -> otelhttp (optional) -> retryablehttp. It also
// returns the base transport so Close can drop idle connections.
func newHTTPClient(cfg TransportConfig, logger *zap.Logger) (*http.Client, *http.Transport) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConnsPerHost > 0 {
		base.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}

	var rt http.RoundTripper = base
	if cfg.Tracing {
		rt = otelhttp.NewTransport(rt)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: rt, Timeout: cfg.Timeout}
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	// Non-2xx responses, 401 included, must reach the interceptor untouched.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = retryLogger{s: logger.Named("transport").Sugar()}

	return rc.StandardClient(), base
}

// retryLogger adapts zap to retryablehttp.LeveledLogger.
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }

var _ retryablehttp.LeveledLogger = retryLogger{}
