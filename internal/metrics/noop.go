package metrics

// NoopMetrics is used by tests and any caller that does not want to
// stand up a prometheus registry.
var NoopMetrics Metricer = new(noopMetrics)

type noopMetrics struct{}

func (*noopMetrics) RecordInfo(version string) {}
func (*noopMetrics) RecordUp()                 {}

func (*noopMetrics) RecordEventProcessed(rollupID string, eventType string) {}
func (*noopMetrics) RecordDecodeError(rollupID string)                     {}
func (*noopMetrics) RecordReconnect(reason string)                        {}
func (*noopMetrics) RecordStaleFilter()                                   {}

func (*noopMetrics) RecordSequencerPoll(rollupID string, ok bool)            {}
func (*noopMetrics) RecordSequencerProducing(rollupID string, producing bool) {}

func (*noopMetrics) RecordSubscriberConnected()                  {}
func (*noopMetrics) RecordSubscriberDisconnected()                {}
func (*noopMetrics) RecordSubscriberLagged(subscriberID string) {}
func (*noopMetrics) RecordRingDepth(depth int)                  {}
