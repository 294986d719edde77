package twiml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse parses a TwiML document and returns its Response AST
func Parse(data []byte) (*Response, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(data)))
	var resp Response

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xml parse error: %w", err)
		}

		if se, ok := token.(xml.StartElement); ok {
			if se.Name.Local == "Response" {
				if err := parseResponse(decoder, &resp); err != nil {
					return nil, err
				}
				return &resp, nil
			}
		}
	}

	return nil, fmt.Errorf("no <Response> element found")
}

func parseResponse(decoder *xml.Decoder, resp *Response) error {
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch t := token.(type) {
		case xml.StartElement:
			node, err := parseNode(decoder, &t)
			if err != nil {
				return err
			}
			if node != nil {
				resp.Children = append(resp.Children, node)
			}
		case xml.EndElement:
			if t.Name.Local == "Response" {
				return nil
			}
		}
	}
	return nil
}

func parseNode(decoder *xml.Decoder, start *xml.StartElement) (Node, error) {
	switch start.Name.Local {
	case "Say":
		return parseSay(decoder, start)
	case "Play":
		return parsePlay(decoder, start)
	case "Pause":
		return parsePause(decoder, start)
	case "Gather":
		return parseGather(decoder, start)
	case "Dial":
		return parseDial(decoder, start)
	case "Redirect":
		return parseRedirect(decoder, start)
	case "Hangup":
		// Hangup is self-closing, consume the end tag
		decoder.Skip()
		return &Hangup{}, nil
	default:
		return nil, fmt.Errorf("unknown TwiML element: <%s>", start.Name.Local)
	}
}

func parseSay(decoder *xml.Decoder, start *xml.StartElement) (*Say, error) {
	say := &Say{}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "voice":
			say.Voice = attr.Value
		case "language":
			say.Language = attr.Value
		}
	}
	if err := decoder.DecodeElement(&say.Text, start); err != nil {
		return nil, err
	}
	return say, nil
}

func parsePlay(decoder *xml.Decoder, start *xml.StartElement) (*Play, error) {
	play := &Play{}
	if err := decoder.DecodeElement(&play.URL, start); err != nil {
		return nil, err
	}
	return play, nil
}

func parsePause(decoder *xml.Decoder, start *xml.StartElement) (*Pause, error) {
	pause := &Pause{Length: 1} // default 1s
	for _, attr := range start.Attr {
		if attr.Name.Local == "length" {
			if n, err := strconv.Atoi(attr.Value); err == nil {
				pause.Length = n
			}
		}
	}
	decoder.Skip()
	return pause, nil
}

func parseGather(decoder *xml.Decoder, start *xml.StartElement) (*Gather, error) {
	gather := &Gather{
		Input:  "dtmf",
		Method: "POST",
	}

	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "input":
			gather.Input = attr.Value
		case "action":
			gather.Action = attr.Value
		case "method":
			gather.Method = strings.ToUpper(attr.Value)
		case "speechTimeout":
			gather.SpeechTimeout = attr.Value
		case "language":
			gather.Language = attr.Value
		}
	}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			node, err := parseNode(decoder, &t)
			if err != nil {
				return nil, err
			}
			if node != nil {
				gather.Children = append(gather.Children, node)
			}
		case xml.EndElement:
			if t.Name.Local == "Gather" {
				return gather, nil
			}
		}
	}

	return gather, nil
}

func parseDial(decoder *xml.Decoder, start *xml.StartElement) (*Dial, error) {
	dial := &Dial{Method: "POST"}

	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "action":
			dial.Action = attr.Value
		case "method":
			dial.Method = strings.ToUpper(attr.Value)
		}
	}

	var textContent string
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.CharData:
			textContent += strings.TrimSpace(string(t))
		case xml.EndElement:
			if t.Name.Local == "Dial" {
				dial.Number = textContent
				return dial, nil
			}
		}
	}

	return dial, nil
}

func parseRedirect(decoder *xml.Decoder, start *xml.StartElement) (*Redirect, error) {
	redirect := &Redirect{Method: "POST"}
	for _, attr := range start.Attr {
		if attr.Name.Local == "method" {
			redirect.Method = strings.ToUpper(attr.Value)
		}
	}
	if err := decoder.DecodeElement(&redirect.URL, start); err != nil {
		return nil, err
	}
	return redirect, nil
}

// FindPlay returns the first <Play> URL anywhere in the document
func (r *Response) FindPlay() (string, bool) {
	return findPlay(r.Children)
}

func findPlay(nodes []Node) (string, bool) {
	for _, n := range nodes {
		switch t := n.(type) {
		case *Play:
			return t.URL, true
		case *Gather:
			if url, ok := findPlay(t.Children); ok {
				return url, true
			}
		}
	}
	return "", false
}

// HasVerb reports whether the document contains a top-level verb by name
func (r *Response) HasVerb(name string) bool {
	for _, n := range r.Children {
		switch n.(type) {
		case *Hangup:
			if name == "Hangup" {
				return true
			}
		case *Gather:
			if name == "Gather" {
				return true
			}
		case *Dial:
			if name == "Dial" {
				return true
			}
		case *Redirect:
			if name == "Redirect" {
				return true
			}
		case *Play:
			if name == "Play" {
				return true
			}
		case *Say:
			if name == "Say" {
				return true
			}
		case *Pause:
			if name == "Pause" {
				return true
			}
		}
	}
	return false
}
