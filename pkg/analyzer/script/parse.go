package script

import (
	"fmt"

	"github.com/t14raptor/go-fast/parser"
)

// ParseErrors runs a full ECMAScript parse and returns its error, if any,
// as a one-element list. The parser does not understand ES modules, so
// import/export statements show up here.
func ParseErrors(code string) (errs []string) {
	errs = []string{}
	defer func() {
		if r := recover(); r != nil {
			errs = []string{fmt.Sprintf("parser panic: %v", r)}
		}
	}()
	if _, err := parser.ParseFile(code); err != nil {
		errs = append(errs, err.Error())
	}
	return errs
}
