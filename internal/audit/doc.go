// Package audit streams recorded security events to an external consumer.
//
// The [Dispatcher] is a buffered relay in front of a [Sink]: an in-process [StreamSink], a
// [JSONLinesSink], any function through [SinkFunc], or several at once through [Tee].
// It never decides which events exist; the events recorder hands it every event it stores.
package audit
