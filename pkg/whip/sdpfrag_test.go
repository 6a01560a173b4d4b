package whip

import (
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalICEFragment(t *testing.T) {
	local := &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: testOfferSDP}

	frag, err := marshalICEFragment(local, webrtc.ICECandidateInit{
		Candidate: "candidate:1 1 udp 2130706431 192.0.2.1 50000 typ host",
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(frag, "\r\n"), "\r\n")
	assert.Equal(t, []string{
		"a=ice-ufrag:EsAw",
		"a=ice-pwd:P2uYro0UCOQ4zxjKXaWCBui1",
		"m=audio 9 UDP/TLS/RTP/SAVPF 0",
		"a=mid:0",
		"a=candidate:1 1 udp 2130706431 192.0.2.1 50000 typ host",
	}, lines)
}

func TestMarshalICEFragmentSessionLevelCredentials(t *testing.T) {
	// Credentials at the session level instead of the media level.
	sdp := "v=0\r\n" +
		"o=- 1 1 IN IP4 127.0.0.1\r\n" +
		"s=-\r\n" +
		"t=0 0\r\n" +
		"a=ice-ufrag:sess\r\n" +
		"a=ice-pwd:sessionpwd0000000000000\r\n" +
		"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
		"c=IN IP4 0.0.0.0\r\n" +
		"a=mid:video0\r\n" +
		"a=sendonly\r\n"

	local := &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	frag, err := marshalICEFragment(local, webrtc.ICECandidateInit{
		Candidate: "candidate:2 1 udp 1694498815 198.51.100.1 50001 typ srflx",
	})
	require.NoError(t, err)

	assert.Contains(t, frag, "a=ice-ufrag:sess\r\n")
	assert.Contains(t, frag, "a=ice-pwd:sessionpwd0000000000000\r\n")
	assert.Contains(t, frag, "a=mid:video0\r\n")
}

func TestMarshalICEFragmentNoLocalDescription(t *testing.T) {
	_, err := marshalICEFragment(nil, webrtc.ICECandidateInit{Candidate: "candidate:1"})
	assert.Error(t, err)
}

func TestValidateAnswer(t *testing.T) {
	assert.NoError(t, validateAnswer([]byte(testAnswerSDP)))
	assert.Error(t, validateAnswer(nil), "empty body is not an answer")
	assert.Error(t, validateAnswer([]byte("this is not sdp")))

	noMedia := "v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"
	assert.Error(t, validateAnswer([]byte(noMedia)), "answer without media sections is useless")
}
