// Package chat contains the Twitch chat session used by the bot.
//
// A Session joins the configured channels over IRC, hands every inbound line to a
// Handler and sends the reply back to the channel it came from:
//   - Connect blocks until the IRC connection is up, the loop fails, or the connect
//     timeout passes. Callers treat an error as fatal at startup.
//   - A disconnect after that is logged and reflected by Connected; there is no
//     reconnect loop here.
//   - Every outbound message passes through the chat rate limiter. Send failures are
//     logged and dropped.
//
// Credentials: the IRC client needs the bot login and an OAuth token with the
// chat:read and chat:edit scopes. The "oauth:" prefix is added by NewSession.
package chat
