package whip

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// marshalICEFragment renders one gathered candidate as the SDP fragment body
// of a trickle PATCH: ICE credentials, the first m-line of the bundled
// transport with its mid, and the candidate attribute.
func marshalICEFragment(local *webrtc.SessionDescription, candidate webrtc.ICECandidateInit) (string, error) {
	parsed, err := parseSessionDescription(local)
	if err != nil {
		return "", err
	}
	if len(parsed.MediaDescriptions) == 0 {
		return "", fmt.Errorf("local description has no media sections")
	}

	first := parsed.MediaDescriptions[0]

	ufrag, ok := iceAttribute(parsed, first, "ice-ufrag")
	if !ok {
		return "", fmt.Errorf("local description has no ice-ufrag")
	}
	pwd, ok := iceAttribute(parsed, first, "ice-pwd")
	if !ok {
		return "", fmt.Errorf("local description has no ice-pwd")
	}

	mid, ok := first.Attribute("mid")
	if !ok {
		return "", fmt.Errorf("local description has no mid")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "a=ice-ufrag:%s\r\n", ufrag)
	fmt.Fprintf(&b, "a=ice-pwd:%s\r\n", pwd)
	fmt.Fprintf(&b, "m=%s 9 %s 0\r\n", first.MediaName.Media, strings.Join(first.MediaName.Protos, "/"))
	fmt.Fprintf(&b, "a=mid:%s\r\n", mid)
	fmt.Fprintf(&b, "a=%s\r\n", strings.TrimPrefix(candidate.Candidate, "a="))
	return b.String(), nil
}

// iceAttribute looks the attribute up on the media section first, then at
// session level, matching where different stacks choose to put it.
func iceAttribute(desc *sdp.SessionDescription, m *sdp.MediaDescription, name string) (string, bool) {
	if v, ok := m.Attribute(name); ok {
		return v, true
	}
	return desc.Attribute(name)
}

func parseSessionDescription(d *webrtc.SessionDescription) (*sdp.SessionDescription, error) {
	if d == nil {
		return nil, fmt.Errorf("no local description")
	}
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(d.SDP)); err != nil {
		return nil, fmt.Errorf("failed to parse session description: %w", err)
	}
	return &parsed, nil
}

// validateAnswer checks that the endpoint's answer is parsable SDP carrying
// at least one media section.
func validateAnswer(body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("empty answer body")
	}
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal(body); err != nil {
		return fmt.Errorf("malformed answer SDP: %w", err)
	}
	if len(parsed.MediaDescriptions) == 0 {
		return fmt.Errorf("answer has no media sections")
	}
	return nil
}
