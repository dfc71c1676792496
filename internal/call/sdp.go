// Package call drives the signaling handshake for one media call: offer,
// answer, candidate relay, ack and teardown.
package call

import (
	"regexp"
	"strings"
)

var (
	ufragLine     = regexp.MustCompile(`^a=ice-ufrag:(.+)$`)
	pwdLine       = regexp.MustCompile(`^a=ice-pwd:(.+)$`)
	candidateFrag = regexp.MustCompile(`\bufrag\s+(\S+)`)
)

// icePasswords extracts the ufrag to password pairs from a session
// description. Each ufrag line is paired with the next password line that
// follows it.
func icePasswords(sdp string) map[string]string {
	pwds := make(map[string]string)
	lines := strings.Split(strings.ReplaceAll(sdp, "\r\n", "\n"), "\n")
	for i, line := range lines {
		m := ufragLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		for _, next := range lines[i+1:] {
			if p := pwdLine.FindStringSubmatch(next); p != nil {
				pwds[m[1]] = p[1]
				break
			}
		}
	}
	return pwds
}

// candidateUfrag extracts the ufrag named inside a candidate string, if
// any.
func candidateUfrag(candidate string) string {
	m := candidateFrag.FindStringSubmatch(candidate)
	if m == nil {
		return ""
	}
	return m[1]
}
