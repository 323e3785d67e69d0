package owa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const testHomePage = `<html>
<head>
<script type="text/javascript" src="/ecp/scripts/common.js"></script>
<script type="text/javascript">var unrelated = {"JsonResults":"{\"Output\":[{\"DisplayName\":\"Wrong\"}]}"};</script>
</head>
<body>
<div id="ResultPanePlaceHolder"></div>
<script type="text/javascript">
Sys.Application.add_init(function() {
	$create(EcpHomePage, {"Identity":"alice","JsonResults":"{\"Output\":[{\"DisplayName\":\"Alice Smith\",\"PrimarySmtpAddress\":\"alice@example.com\",\"Url\":\"https:\/\/mail.example.com\/owa\/\"}],\"Warnings\":null}"}, null, null, $get("ResultPanePlaceHolder"));
});
</script>
</body>
</html>`

const testCommentedScript = `// x({"JsonResults":"{\"Output\":[{\"Stale\":1}]}"})
/* {"JsonResults":"{\"Output\":[{\"Stale\":2}]}"} */
x({"JsonResults":"{\"Output\":[{\"Fresh\":1}]}"})`

func TestExtractJsonResults(t *testing.T) {
	testCases := []struct {
		name     string
		script   string
		expected string
	}{
		{
			name:     "quoted key",
			script:   `x({"JsonResults":"{\"Output\":[]}"})`,
			expected: `{"Output":[]}`,
		},
		{
			name:     "bare key",
			script:   `x({ JsonResults : "{\"Output\":[{\"A\":\"\\u0041\"}]}" })`,
			expected: `{"Output":[{"A":"\u0041"}]}`,
		},
		{
			name:     "single quoted literal",
			script:   `x({'JsonResults':'{"Output":[{"Name":"Alice"}]}'})`,
			expected: `{"Output":[{"Name":"Alice"}]}`,
		},
		{
			name:     "javascript only escapes",
			script:   `x({JsonResults:'{"Output":[{"Name":"O\'Brien","Other":"\x41lice"}]}'})`,
			expected: `{"Output":[{"Name":"O'Brien","Other":"Alice"}]}`,
		},
		{
			name:     "commented out property",
			script:   testCommentedScript,
			expected: `{"Output":[{"Fresh":1}]}`,
		},
		{
			name:     "property name inside a string",
			script:   `var s = "JsonResults: '{}'"; x({"JsonResults":"{\"Output\":[]}"})`,
			expected: `{"Output":[]}`,
		},
		{
			name:     "last property wins",
			script:   `a({"JsonResults":"{\"Output\":[{\"N\":1}]}"}); b({"JsonResults":"{\"Output\":[{\"N\":2}]}"})`,
			expected: `{"Output":[{"N":2}]}`,
		},
		{
			name:     "nested in a function",
			script:   `Sys.Application.add_init(function() { $create(P, {"JsonResults":"{\"Output\":[]}"}, null); });`,
			expected: `{"Output":[]}`,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			payload, err := ExtractJsonResults(test.script)
			require.NoError(t, err)
			require.JSONEq(t, test.expected, string(payload))
		})
	}
}

func TestExtractJsonResultsMissing(t *testing.T) {
	_, err := ExtractJsonResults(`var x = {"Other":"{}"};`)
	require.Error(t, err)

	_, err = ExtractJsonResults(`var x = {"JsonResults":"not json"};`)
	require.Error(t, err)

	// only string values hold a payload
	_, err = ExtractJsonResults(`var x = {"JsonResults":{"Output":[]}};`)
	require.Error(t, err)

	_, err = ExtractJsonResults(`var x = {`)
	require.Error(t, err)
}

func TestGetAccountIdentity(t *testing.T) {
	fake := newFakeOwa(t, withHomePage(testHomePage))
	s := login(t, fake)

	identity, err := GetAccountIdentity(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"DisplayName":        "Alice Smith",
		"PrimarySmtpAddress": "alice@example.com",
		"Url":                "https://mail.example.com/owa/",
	}, identity)
}

func TestGetAccountIdentityNoScripts(t *testing.T) {
	fake := newFakeOwa(t, withHomePage(`<html><body>nothing here</body></html>`))
	s := login(t, fake)

	_, err := GetAccountIdentity(context.Background(), s)
	require.Error(t, err)
}
