package owa

import (
	"bytes"
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func parseTestHtml(t *testing.T, contents string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(contents))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func login(t *testing.T, fake *fakeOwa) *Session {
	t.Helper()
	s := fake.newSession(t)
	_, err := Authenticate(context.Background(), s, testCredentials)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestParseDialogForm(t *testing.T) {
	doc := parseTestHtml(t, dialogHtml([]string{"Alice"}))
	require.Equal(t, FormData{
		"hidpid":   "AddressBook",
		"hidtoken": fakeDialogToken,
		"hidpg":    "0",
	}, ParseDialogForm(doc))
}

func TestParseDialogFormSkipsNestedInputs(t *testing.T) {
	doc := parseTestHtml(t, `<html><body><form id="frm" method="post">
<input type="hidden" name="hidpg" value="0">
<input type="text" value="unnamed">
<table class="lvw"><tr><td><input type="checkbox" name="chkRcpt" value="row-1"></td></tr></table>
</form></body></html>`)
	require.Equal(t, FormData{"hidpg": "0"}, ParseDialogForm(doc))
}

func TestParseContactPage(t *testing.T) {
	doc := parseTestHtml(t, dialogHtml([]string{"Smith, Alice", "", "O'Brien &amp; Co", "  Bob"}))
	require.Equal(
		t,
		[]string{"Smith, Alice", "O'Brien &amp; Co", "  Bob"},
		ParseContactPage(doc),
	)
}

func TestParseContactPageHeaderOnly(t *testing.T) {
	doc := parseTestHtml(t, dialogHtml(nil))
	require.Len(t, doc.Find("table.lvw tr").Nodes, 3)
	require.Empty(t, ParseContactPage(doc))
}

func TestFetchContactPage(t *testing.T) {
	fake := newFakeOwa(t, withPages([]string{"Alice", "Bob"}))
	s := login(t, fake)

	form := FormData{"hidpid": "AddressBook", "hidtoken": fakeDialogToken, "hidpg": "0"}

	names, err := FetchContactPage(context.Background(), s, form, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"Alice", "Bob"}, names)

	names, err = FetchContactPage(context.Background(), s, form, 1)
	require.NoError(t, err)
	require.Empty(t, names)

	// the baseline form is not modified by the override
	require.Equal(t, "0", form["hidpg"])
}

func TestFetchContactPageUnauthenticated(t *testing.T) {
	fake := newFakeOwa(t, withPages([]string{"Alice"}))
	s := fake.newSession(t)

	_, err := FetchContactPage(context.Background(), s, FormData{"hidtoken": fakeDialogToken}, 0)
	require.Error(t, err)
}

func TestScrapeContacts(t *testing.T) {
	fake := newFakeOwa(t, withPages(
		[]string{"Alice", "Bob"},
		[]string{"Carol", "Dave"},
		[]string{"Erin", "Frank"},
		[]string{"Grace"},
	))
	s := login(t, fake)

	names, err := ScrapeContacts(context.Background(), s, 3)
	require.NoError(t, err)
	require.Equal(t, 7, names.Len())

	diff := cmp.Diff(
		[]string{"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace"},
		names.Sorted(),
	)
	if diff != "" {
		t.Fatalf("unexpected names (-want +got):\n%s", diff)
	}

	// worker 0: 0, 3, 6; worker 1: 1, 4; worker 2: 2, 5
	require.Equal(t, map[int]int{0: 1, 1: 1, 2: 1, 3: 1, 4: 1, 5: 1, 6: 1}, fake.recordedOffsets())
}

func TestScrapeContactsSingleWorker(t *testing.T) {
	fake := newFakeOwa(t, withPages(
		[]string{"Alice", "Bob"},
		[]string{"Carol"},
	))
	s := login(t, fake)

	names, err := ScrapeContacts(context.Background(), s, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"Alice", "Bob", "Carol"}, names.Sorted())
	require.Equal(t, map[int]int{0: 1, 1: 1, 2: 1}, fake.recordedOffsets())
}

func TestScrapeContactsDeduplicates(t *testing.T) {
	fake := newFakeOwa(t, withPages(
		[]string{"Alice", "Bob"},
		[]string{"Bob", "Carol"},
		[]string{"Alice"},
	))
	s := login(t, fake)

	names, err := ScrapeContacts(context.Background(), s, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"Alice", "Bob", "Carol"}, names.Sorted())
}

func TestScrapeContactsEmptyList(t *testing.T) {
	fake := newFakeOwa(t)
	s := login(t, fake)

	names, err := ScrapeContacts(context.Background(), s, 4)
	require.NoError(t, err)
	require.Equal(t, 0, names.Len())
	require.Equal(t, map[int]int{0: 1, 1: 1, 2: 1, 3: 1}, fake.recordedOffsets())
}

func TestScrapeContactsUnauthenticated(t *testing.T) {
	fake := newFakeOwa(t, withPages([]string{"Alice"}))
	s := fake.newSession(t)

	names, err := ScrapeContacts(context.Background(), s, 2)
	require.Error(t, err)
	require.Nil(t, names)
}

func TestScrapeContactsInvalidConcurrency(t *testing.T) {
	fake := newFakeOwa(t)
	s := login(t, fake)

	_, err := ScrapeContacts(context.Background(), s, 0)
	require.Error(t, err)
}

func TestNameSet(t *testing.T) {
	names := NameSet{}
	names.Add("Alice")
	names.Add("Bob")
	require.Equal(t, 2, names.Len())

	names.Add("Alice")
	names.Add("")
	require.Equal(t, 2, names.Len())
	require.True(t, names.Has("Alice"))
	require.False(t, names.Has(""))

	other := NameSet{}
	other.Add("Bob")
	other.Add("Carol")
	names.Merge(other)
	require.Equal(t, []string{"Alice", "Bob", "Carol"}, names.Sorted())
}
