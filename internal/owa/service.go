package owa

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	actionGetPeopleFilters               = "GetPeopleFilters"
	actionFindPeople                     = "FindPeople"
	actionGetPersona                     = "GetPersona"
	actionGetDaysUntilPasswordExpiration = "GetDaysUntilPasswordExpiration"
)

// canary returns the anti-forgery token service.svc expects as a header.
func (s *Session) canary() (string, error) {
	value, ok := s.Cookie(cookieCanary)
	if !ok || value == "" {
		return "", ErrMissingCanary
	}
	return value, nil
}

func serviceCall(ctx context.Context, s *Session, action string, body any) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, action)
	defer span.End()
	span.SetAttributes(attribute.String("owa.service.action", action))

	canary, err := s.canary()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		s.tel.ReportBroken(report_service_call, fmt.Errorf("json marshal: %w", err), action)
		return nil, err
	}

	res, err := s.Http.R().
		SetContext(ctx).
		SetQueryParam("action", action).
		SetHeader("content-type", "application/json; charset=utf-8").
		SetHeader("X-OWA-Canary", canary).
		SetHeader("Action", action).
		SetBody(payload).
		Post(pathService)
	if err != nil {
		s.tel.ReportBroken(report_service_call, fmt.Errorf("fetch: %w", err), action)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("owa: %s: %w", action, err)
	}
	if res.IsError() {
		err := fmt.Errorf("owa: %s: unexpected status %s", action, res.Status())
		s.tel.ReportWarning(report_service_call, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return json.RawMessage(res.Body()), nil
}

// GetPeopleFilters returns the address lists and contact folders that can be
// used as a FindPeople parent folder. (the operation is not officially
// documented)
func GetPeopleFilters(ctx context.Context, s *Session) (json.RawMessage, error) {
	return serviceCall(ctx, s, actionGetPeopleFilters, struct{}{})
}

func GetDaysUntilPasswordExpiration(ctx context.Context, s *Session) (json.RawMessage, error) {
	return serviceCall(ctx, s, actionGetDaysUntilPasswordExpiration, struct{}{})
}

type jsonRequestHeaders struct {
	Type                 string           `json:"__type"`
	RequestServerVersion string           `json:"RequestServerVersion"`
	TimeZoneContext      *timeZoneContext `json:"TimeZoneContext,omitempty"`
}

type timeZoneContext struct {
	Type               string             `json:"__type"`
	TimeZoneDefinition timeZoneDefinition `json:"TimeZoneDefinition"`
}

type timeZoneDefinition struct {
	Type string `json:"__type"`
	Id   string `json:"Id"`
}

type typedId struct {
	Type string `json:"__type"`
	Id   string `json:"Id"`
}

type indexedPageView struct {
	Type               string `json:"__type"`
	BasePoint          string `json:"BasePoint"`
	Offset             int    `json:"Offset"`
	MaxEntriesReturned int    `json:"MaxEntriesReturned"`
}

type targetFolderId struct {
	Type         string  `json:"__type"`
	BaseFolderId typedId `json:"BaseFolderId"`
}

type personaResponseShape struct {
	Type      string `json:"__type"`
	BaseShape string `json:"BaseShape"`
}

type findPeopleBody struct {
	Type                            string               `json:"__type"`
	IndexedPageItemView             indexedPageView      `json:"IndexedPageItemView"`
	QueryString                     *string              `json:"QueryString"`
	ParentFolderId                  targetFolderId       `json:"ParentFolderId"`
	PersonaShape                    personaResponseShape `json:"PersonaShape"`
	ShouldResolveOneOffEmailAddress bool                 `json:"ShouldResolveOneOffEmailAddress"`
}

type findPeopleRequest struct {
	Type   string             `json:"__type"`
	Header jsonRequestHeaders `json:"Header"`
	Body   findPeopleBody     `json:"Body"`
}

type getPersonaBody struct {
	Type      string  `json:"__type"`
	PersonaId typedId `json:"PersonaId"`
}

type getPersonaRequest struct {
	Type   string             `json:"__type"`
	Header jsonRequestHeaders `json:"Header"`
	Body   getPersonaBody     `json:"Body"`
}

const defaultMaxEntriesReturned = 999999999

type FindPeopleParams struct {
	// FolderId is the id of the address list to search, see GetPeopleFilters.
	FolderId string
	// QueryString is sent as null when empty, which lists the whole folder.
	QueryString string
	Offset      int
	// MaxEntriesReturned defaults to 999999999.
	MaxEntriesReturned int
}

// FindPeople returns the personas of a contacts folder or address list,
// optionally filtered by a query string. (Exchange 2013 and later)
func FindPeople(ctx context.Context, s *Session, params FindPeopleParams) (json.RawMessage, error) {
	maxEntries := params.MaxEntriesReturned
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntriesReturned
	}
	var query *string
	if params.QueryString != "" {
		query = &params.QueryString
	}

	return serviceCall(ctx, s, actionFindPeople, findPeopleRequest{
		Type: "FindPeopleJsonRequest:#Exchange",
		Header: jsonRequestHeaders{
			Type:                 "JsonRequestHeaders:#Exchange",
			RequestServerVersion: "Exchange2013",
			TimeZoneContext: &timeZoneContext{
				Type: "TimeZoneContext:#Exchange",
				TimeZoneDefinition: timeZoneDefinition{
					Type: "TimeZoneDefinitionType:#Exchange",
					Id:   "Mountain Standard Time",
				},
			},
		},
		Body: findPeopleBody{
			Type: "FindPeopleRequest:#Exchange",
			IndexedPageItemView: indexedPageView{
				Type:               "IndexedPageView:#Exchange",
				BasePoint:          "Beginning",
				Offset:             params.Offset,
				MaxEntriesReturned: maxEntries,
			},
			QueryString: query,
			ParentFolderId: targetFolderId{
				Type: "TargetFolderId:#Exchange",
				BaseFolderId: typedId{
					Type: "AddressListId:#Exchange",
					Id:   params.FolderId,
				},
			},
			PersonaShape: personaResponseShape{
				Type:      "PersonaResponseShape:#Exchange",
				BaseShape: "Default",
			},
			ShouldResolveOneOffEmailAddress: false,
		},
	})
}

// GetPersona returns the properties of a single persona. (Exchange 2013 and
// later)
func GetPersona(ctx context.Context, s *Session, personaId string) (json.RawMessage, error) {
	return serviceCall(ctx, s, actionGetPersona, getPersonaRequest{
		Type: "GetPersonaJsonRequest:#Exchange",
		Header: jsonRequestHeaders{
			Type:                 "JsonRequestHeaders:#Exchange",
			RequestServerVersion: "Exchange2013",
		},
		Body: getPersonaBody{
			Type: "GetPersonaRequest:#Exchange",
			PersonaId: typedId{
				Type: "ItemId:#Exchange",
				Id:   personaId,
			},
		},
	})
}
