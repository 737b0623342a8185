package capture

// Sink receives captured attributes. Implementations decide where the
// key/value pairs go: a span builder, a log record, a plain map.
type Sink interface {
	Put(key string, value any)
}

// MapSink collects attributes into a map. Not safe for concurrent use; make
// one per exchange.
type MapSink map[string]any

// Put stores value under key, overwriting any previous value.
func (s MapSink) Put(key string, value any) { s[key] = value }
