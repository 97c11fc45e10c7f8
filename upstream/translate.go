/*
Package upstream translates between the decoded geolocation request (Rq)
and the upstream location API's XML protocol: it builds the outbound
LocationRQ document, posts it, and parses the LocationRS document back
into (lat, lon, hpe).

The XML shapes are modeled as tagged structs (grounded in the same
struct-tag style used for WeCom's callback XML elsewhere in the corpus)
rather than string templating, so attribute quoting and text escaping of
MAC addresses and signal strengths are always correct.
*/
package upstream

import (
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"elg-gateway/gwerr"
	"elg-gateway/pkg/upstreamhttp"
	"elg-gateway/protocol"
)

const (
	schemaLocation = "http://skyhookwireless.com/wps/2005 ../../src/xsd/location.xsd"
	xmlns          = "http://skyhookwireless.com/wps/2005"
	rqVersion      = "2.25"
	authVersion    = "2.2"
	authUsername   = "elg"
)

// locationRQ is the outbound XML request document.
type locationRQ struct {
	XMLName        xml.Name         `xml:"LocationRQ"`
	XSI            string           `xml:"xmlns:xsi,attr"`
	SchemaLocation string           `xml:"xsi:schemaLocation,attr"`
	XMLNS          string           `xml:"xmlns,attr"`
	Version        string           `xml:"version,attr"`
	Authentication locationRQAuth   `xml:"authentication"`
	AccessPoints   []locationRQAP   `xml:"access-point"`
}

type locationRQAuth struct {
	Version string         `xml:"version,attr"`
	Key     locationRQAuthKey `xml:"key"`
}

type locationRQAuthKey struct {
	Key      string `xml:"key,attr"`
	Username string `xml:"username,attr"`
}

type locationRQAP struct {
	MAC            string `xml:"mac"`
	SignalStrength string `xml:"signal-strength"`
}

// BuildRequestXML renders rq as the upstream LocationRQ document, using
// apiKey as the partner's upstream authentication key.
func BuildRequestXML(rq protocol.Rq, apiKey string) ([]byte, error) {
	doc := locationRQ{
		XSI:            "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: schemaLocation,
		XMLNS:          xmlns,
		Version:        rqVersion,
		Authentication: locationRQAuth{
			Version: authVersion,
			Key: locationRQAuthKey{
				Key:      apiKey,
				Username: authUsername,
			},
		},
		AccessPoints: make([]locationRQAP, len(rq.APs.MAC)),
	}
	for i, mac := range rq.APs.MAC {
		doc.AccessPoints[i] = locationRQAP{
			MAC:            strconv.FormatUint(mac, 16),
			SignalStrength: strconv.FormatInt(int64(rq.APs.RSSI[i]), 10),
		}
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal LocationRQ: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// locationRS is the inbound XML response document, parsed after the
// default xmlns attribute has been stripped from the raw bytes.
type locationRS struct {
	XMLName  xml.Name `xml:"LocationRS"`
	Location struct {
		Latitude  string `xml:"latitude"`
		Longitude string `xml:"longitude"`
		HPE       string `xml:"hpe"`
	} `xml:"location"`
}

// defaultXMLNSAttr matches a bare xmlns="..." attribute. Go's regexp has no
// count-limited replace, so callers must splice out only the first match
// themselves (see stripFirstXMLNSAttr) — using ReplaceAll here would strip
// every occurrence, not just the root's, diverging from the original
// `re.sub(..., count=1)` behavior this is ported from. Per the spec's own
// open question, stripping only the first occurrence is still fragile if
// an inner element redeclares xmlns, but that's the behavior being matched.
var defaultXMLNSAttr = regexp.MustCompile(`\sxmlns="[^"]*"`)

// stripFirstXMLNSAttr removes only the first bare xmlns="..." attribute
// from body, leaving any namespace redeclaration on an inner element
// untouched.
func stripFirstXMLNSAttr(body []byte) []byte {
	loc := defaultXMLNSAttr.FindIndex(body)
	if loc == nil {
		return body
	}
	out := make([]byte, 0, len(body)-(loc[1]-loc[0]))
	out = append(out, body[:loc[0]]...)
	out = append(out, body[loc[1]:]...)
	return out
}

// ParseResponseXML parses the upstream LocationRS document into
// (lat, lon, hpe).
func ParseResponseXML(body []byte) (lat, lon, hpe float64, err error) {
	stripped := stripFirstXMLNSAttr(body)

	var doc locationRS
	if err := xml.Unmarshal(stripped, &doc); err != nil {
		return 0, 0, 0, gwerr.New(gwerr.KindMalformedUpstreamResponse, fmt.Errorf("unmarshal LocationRS: %w", err))
	}

	lat, err = parseRSFloat(doc.Location.Latitude, "latitude")
	if err != nil {
		return 0, 0, 0, err
	}
	lon, err = parseRSFloat(doc.Location.Longitude, "longitude")
	if err != nil {
		return 0, 0, 0, err
	}
	hpe, err = parseRSFloat(doc.Location.HPE, "hpe")
	if err != nil {
		return 0, 0, 0, err
	}
	return lat, lon, hpe, nil
}

func parseRSFloat(s, field string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, gwerr.New(gwerr.KindMalformedUpstreamResponse, fmt.Errorf("location/%s is missing", field))
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, gwerr.New(gwerr.KindMalformedUpstreamResponse, fmt.Errorf("location/%s is not a number: %w", field, err))
	}
	return v, nil
}

// Translator issues the upstream HTTP call and translates the decoded
// request/response pair, combining BuildRequestXML/ParseResponseXML with
// a pooled HTTP client.
type Translator struct {
	client *upstreamhttp.Client
	apiURL string
}

// NewTranslator builds a Translator that posts to apiURL using client.
func NewTranslator(client *upstreamhttp.Client, apiURL string) *Translator {
	return &Translator{client: client, apiURL: apiURL}
}

// Locate translates rq into an upstream XML request, posts it, and parses
// the response into (lat, lon, hpe).
func (t *Translator) Locate(ctx context.Context, rq protocol.Rq, apiKey string) (lat, lon, hpe float64, err error) {
	reqBody, err := BuildRequestXML(rq, apiKey)
	if err != nil {
		return 0, 0, 0, gwerr.New(gwerr.KindMalformedMessage, err)
	}

	respBody, err := t.client.PostXML(ctx, t.apiURL, reqBody)
	if err != nil {
		return 0, 0, 0, gwerr.New(gwerr.KindUpstream, err)
	}
	respBody = []byte(strings.TrimSpace(string(respBody)))

	return ParseResponseXML(respBody)
}
