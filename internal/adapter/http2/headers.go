package http2

import "strings"

// requestPseudoHeaders is the set legal on a request header block.
var requestPseudoHeaders = map[string]bool{
	":method": true, ":scheme": true, ":authority": true, ":path": true, ":protocol": true,
}

var responsePseudoHeaders = map[string]bool{
	":status": true,
}

// SplitPseudoHeaders separates a decoded field list into pseudo-headers (in
// wire order, for fingerprinting) and regular headers, enforcing that every
// pseudo-header precedes all regular headers and none repeats.
func SplitPseudoHeaders(fields []HeaderField, legal map[string]bool) (order []string, pseudo map[string]string, regular []HeaderField, err error) {
	pseudo = make(map[string]string)
	seenRegular := false

	for _, f := range fields {
		if strings.HasPrefix(f.Name, ":") {
			if seenRegular {
				return nil, nil, nil, &StreamError{Code: ErrProtocolError, Reason: "pseudo-header after regular header"}
			}
			if !legal[f.Name] {
				return nil, nil, nil, &StreamError{Code: ErrProtocolError, Reason: "illegal pseudo-header " + f.Name}
			}
			if _, dup := pseudo[f.Name]; dup {
				return nil, nil, nil, &StreamError{Code: ErrProtocolError, Reason: "duplicate pseudo-header " + f.Name}
			}
			pseudo[f.Name] = f.Value
			order = append(order, f.Name)
			continue
		}
		seenRegular = true
		regular = append(regular, f)
	}
	return order, pseudo, regular, nil
}
