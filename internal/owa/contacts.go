package owa

import (
	"bytes"
	"context"
	"fmt"
	"owascrape/internal/components/assert"
	"owascrape/lib/htmlutil"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// the paging offset field of the address book dialog form
const fieldPage = "hidpg"

// the first three rows of the results table are headers and chrome
const contactNameSelector = "table.lvw > tbody > tr:nth-child(n+4) > td:nth-child(3)"

var contactPagesCounter, _ = meter.Int64Counter(
	"owa.contacts.pages",
	metric.WithDescription("Address book dialog pages fetched."),
)

// FormData holds the fields of the address book dialog form, every page
// request repeats them with the paging field overridden.
type FormData map[string]string

func (f FormData) withPage(offset int) map[string]string {
	out := make(map[string]string, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[fieldPage] = strconv.Itoa(offset)
	return out
}

// ParseDialogForm harvests the name and value of every input directly under
// the dialog's main form. Inputs nested deeper (ex. the row checkboxes of the
// results table) are left out.
func ParseDialogForm(doc *goquery.Document) FormData {
	form := FormData{}
	doc.Find("form#frm > input").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		form[name] = input.AttrOr("value", "")
	})
	return form
}

// ParseContactPage reads the display names out of one page of the address
// book dialog. An empty result means the page is past the end of the list.
func ParseContactPage(doc *goquery.Document) []string {
	names := []string{}
	for _, cell := range doc.Find(contactNameSelector).Nodes {
		name := htmlutil.TrimRightSpace(htmlutil.GetText(cell))
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

func parseHtml(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewBuffer(body))
}

// FetchContactPage requests the address book dialog page at offset.
func FetchContactPage(ctx context.Context, s *Session, form FormData, offset int) ([]string, error) {
	res, err := s.Http.R().
		SetContext(ctx).
		SetHeader("Connection", "Keep-Alive").
		SetFormData(form.withPage(offset)).
		Post(pathAddressBook)
	if err != nil {
		return nil, fmt.Errorf("owa: fetch contact page %d: %w", offset, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("owa: fetch contact page %d: unexpected status %s", offset, res.Status())
	}
	contactPagesCounter.Add(ctx, 1)

	doc, err := parseHtml(res.Body())
	if err != nil {
		return nil, fmt.Errorf("owa: parse contact page %d: %w", offset, err)
	}
	names := ParseContactPage(doc)
	s.tel.ReportDebug(report_fetch_contact_page, offset, len(names))
	return names, nil
}

// fetchDialogForm loads the address book dialog once to harvest its form.
func fetchDialogForm(ctx context.Context, s *Session) (FormData, error) {
	res, err := s.Http.R().
		SetContext(ctx).
		Get(pathAddressBook)
	if err != nil {
		return nil, fmt.Errorf("owa: fetch address book dialog: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("owa: fetch address book dialog: unexpected status %s", res.Status())
	}
	doc, err := parseHtml(res.Body())
	if err != nil {
		return nil, fmt.Errorf("owa: parse address book dialog: %w", err)
	}
	return ParseDialogForm(doc), nil
}

// scrapeStride fetches offsets worker, worker+stride, worker+2*stride, ...
// until the first empty page.
func scrapeStride(ctx context.Context, s *Session, form FormData, worker, stride int) (NameSet, error) {
	assert.Positive(stride)

	names := NameSet{}
	for i := 0; ; i++ {
		page, err := FetchContactPage(ctx, s, form, worker+i*stride)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return names, nil
		}
		for _, name := range page {
			names.Add(name)
		}
	}
}

// ScrapeContacts collects every contact name of the authenticated session's
// account. numConcurrent workers, each a sibling of s, page through the
// address book dialog with strided offsets. Each worker keeps its own set and
// the sets are merged once all workers are done. The first worker to fail
// cancels the rest and its error is returned.
func ScrapeContacts(ctx context.Context, s *Session, numConcurrent int) (NameSet, error) {
	ctx, span := tracer.Start(ctx, "ScrapeContacts")
	defer span.End()
	span.SetAttributes(attribute.Int("owa.contacts.concurrency", numConcurrent))

	if numConcurrent < 1 {
		err := fmt.Errorf("owa: scrape contacts: concurrency must be at least 1, got %d", numConcurrent)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	form, err := fetchDialogForm(ctx, s)
	if err != nil {
		s.tel.ReportBroken(report_scrape_contacts, err)
		span.SetStatus(codes.Error, "failed to fetch dialog form")
		return nil, err
	}

	results := make([]NameSet, numConcurrent)
	group, groupCtx := errgroup.WithContext(ctx)
	for worker := 0; worker < numConcurrent; worker++ {
		worker := worker
		workerSession := s.Sibling()
		group.Go(func() error {
			names, err := scrapeStride(groupCtx, workerSession, form, worker, numConcurrent)
			if err != nil {
				return fmt.Errorf("worker %d: %w", worker, err)
			}
			results[worker] = names
			return nil
		})
	}
	err = group.Wait()
	if err != nil {
		s.tel.ReportBroken(report_scrape_contacts, err)
		span.SetStatus(codes.Error, "worker failed")
		return nil, err
	}

	all := NameSet{}
	for _, names := range results {
		all.Merge(names)
	}
	s.tel.ReportCount(report_scrape_contacts, int64(all.Len()))
	span.SetAttributes(attribute.Int("owa.contacts.count", all.Len()))
	return all, nil
}
