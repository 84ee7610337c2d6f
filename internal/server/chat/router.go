package chat

import (
	"context"
	"fmt"
	"strings"
)

const helpText = "\nCommands:\n" +
	"/help - This message\n" +
	"/users - Online users\n" +
	"/exit - Quit chat\n" +
	"\nChat:\n" +
	"@user message - Private\n" +
	"#group message - Group\n" +
	"message - Public\n"

// dispatch classifies one chat line and routes it. Returns true when the
// session asked to quit. Replies to the sender are best-effort like every
// other delivery: a failed write is logged and the loop goes on.
func (s *Session) dispatch(ctx context.Context, line string) bool {
	switch {
	case line == "/help":
		s.reply(ctx, helpText)

	case line == "/users":
		s.reply(ctx, s.renderUserList())

	case line == "/exit" || line == "/quit":
		s.reply(ctx, "\nGoodbye!\n")
		return true

	case strings.HasPrefix(line, "@"):
		s.direct(ctx, line[1:])

	case strings.HasPrefix(line, "#"):
		s.group(ctx, line[1:])

	default:
		s.srv.broadcast(ctx, fmt.Sprintf("%s: %s", s.username, line), s)
	}

	return false
}

// direct delivers a private message to every connected session registered
// under the target name. Normally that is exactly one session, but the
// fan-out does not assume single delivery.
func (s *Session) direct(ctx context.Context, rest string) {
	target, text := splitFirstToken(rest)

	if target == s.username {
		s.reply(ctx, "Cannot message yourself!\n")
		return
	}

	peers := s.srv.registry.SessionsFor(target)
	for _, peer := range peers {
		if err := peer.send(fmt.Sprintf("\n[PM from %s]: %s\n", s.username, text)); err != nil {
			s.logger.Warn(ctx, "direct delivery failed", "target", target, "error", err)
		}
	}

	if len(peers) > 0 {
		s.reply(ctx, fmt.Sprintf("Sent to @%s\n", target))
	} else {
		s.reply(ctx, fmt.Sprintf("User @%s not found\n", target))
	}
}

// group adds the sender to the group (creating it on first use) and fans the
// message out to the other connected members.
func (s *Session) group(ctx context.Context, rest string) {
	group, text := splitFirstToken(rest)

	recipients := s.srv.registry.JoinGroup(group, s.username)
	for _, peer := range recipients {
		if err := peer.send(fmt.Sprintf("\n[#%s] %s: %s\n", group, s.username, text)); err != nil {
			s.logger.Warn(ctx, "group delivery failed", "group", group, "recipient", peer.username, "error", err)
		}
	}

	s.reply(ctx, fmt.Sprintf("Sent to #%s\n", group))
}

func (s *Session) renderUserList() string {
	names := s.srv.registry.OnlineUsers()

	var b strings.Builder
	b.WriteString("\nOnline users:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	fmt.Fprintf(&b, "\nTotal: %d\n", len(names))
	return b.String()
}

// reply writes to the sender itself; failures are absorbed the same way as
// failures toward any other recipient.
func (s *Session) reply(ctx context.Context, msg string) {
	if err := s.send(msg); err != nil {
		s.logger.Warn(ctx, "reply failed", "username", s.username, "error", err)
	}
}

// splitFirstToken splits "target rest of text" into the first token and the
// remainder, which may be empty.
func splitFirstToken(rest string) (string, string) {
	parts := strings.SplitN(rest, " ", 2)
	if len(parts) < 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
