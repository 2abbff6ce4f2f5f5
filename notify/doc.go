// Package notify renders security mail and delivers it.
//
// Renderers return a [Message]; senders implement the engine's NotificationSender contract
// (Send reports delivery and never panics). [LogSender] is for development, [SMTPSender]
// talks to a relay.
package notify
