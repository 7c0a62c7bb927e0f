package protocol

import (
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigurationFromQuery(t *testing.T) {
	conf, err := ConfigurationFromQuery(url.Values{})
	require.NoError(t, err)
	require.Equal(t, DefaultVersion, conf.Version())
	require.Equal(t, FormatJSON, conf.Format())
	_, ok := conf.Token()
	require.False(t, ok)

	conf, err = ConfigurationFromQuery(url.Values{"version": {"2"}, "format": {"msgpack"}, "token": {"abc"}})
	require.NoError(t, err)
	require.Equal(t, 2, conf.Version())
	require.Equal(t, FormatMsgpack, conf.Format())
	token, ok := conf.Token()
	require.True(t, ok)
	require.Equal(t, "abc", token)

	_, err = ConfigurationFromQuery(url.Values{"format": {"xml"}})
	require.Error(t, err)
	_, err = ConfigurationFromQuery(url.Values{"version": {"v1"}})
	require.Error(t, err)
}

func TestConfigurationSetTokenOnce(t *testing.T) {
	conf := NewConfiguration(1, FormatJSON, "")
	require.NoError(t, conf.SetToken("first"))
	require.ErrorIs(t, conf.SetToken("second"), ErrTokenAlreadySet)
	token, _ := conf.Token()
	require.Equal(t, "first", token)
}

func TestErrorIs(t *testing.T) {
	decoded := &Error{Type: ErrorTypeInvalidSession}
	require.ErrorIs(t, decoded, ErrInvalidSession)
	require.NotErrorIs(t, decoded, ErrInternal)
	wrapped := fmt.Errorf("resolve: %w", decoded)
	var protoErr *Error
	require.True(t, errors.As(wrapped, &protoErr))
	require.Equal(t, ErrorTypeInvalidSession, protoErr.Type)
}

func TestParseReadyFields(t *testing.T) {
	fields, err := ParseReadyFields(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultReadyFields, fields)

	fields, err = ParseReadyFields([]string{"users", " Servers "})
	require.NoError(t, err)
	require.True(t, fields.Has(FieldUsers))
	require.True(t, fields.Has(FieldServers))
	require.False(t, fields.Has(FieldEmojis))
	require.Equal(t, "users,servers", fields.String())

	_, err = ParseReadyFields([]string{"roles"})
	require.Error(t, err)
}

func TestNewReadyRespectsFields(t *testing.T) {
	snapshot := Snapshot{
		Users:   []User{{ID: "u1"}},
		Servers: []Server{{ID: "s1"}},
		Emojis:  []Emoji{{ID: "e1"}},
	}
	ready := NewReady(snapshot, FieldUsers)
	require.Equal(t, KindReady, ready.Kind())
	require.Len(t, ready.Users, 1)
	require.Empty(t, ready.Servers)
	require.NotNil(t, ready.Channels)
	require.Nil(t, ready.Emojis)

	ready = NewReady(snapshot, DefaultReadyFields)
	require.Len(t, ready.Emojis, 1)
}

func TestPingDataJSON(t *testing.T) {
	data, err := BinaryPing([]byte{1, 2, 3}).MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `[1,2,3]`, string(data))

	var p PingData
	require.NoError(t, p.UnmarshalJSON([]byte(`[1,2,3]`)))
	require.Equal(t, []byte{1, 2, 3}, p.Binary)
	require.False(t, p.IsNumber)

	require.NoError(t, p.UnmarshalJSON([]byte(`42`)))
	require.Equal(t, NumberPing(42), p)

	require.Error(t, p.UnmarshalJSON([]byte(`[256]`)))
	require.Error(t, p.UnmarshalJSON([]byte(`"x"`)))
}

func TestGenericEventKind(t *testing.T) {
	require.Equal(t, "Custom", GenericEvent{"type": "Custom"}.Kind())
	require.Equal(t, "", GenericEvent{"type": 1}.Kind())
}
