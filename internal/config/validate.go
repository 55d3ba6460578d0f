// Copyright (c) 2021-2026 Rustam Gilyazov and Contributors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validation is a validator with english error translations.
type Validation struct {
	*validator.Validate
	trans ut.Translator
}

// NewValidation returns a new Validation.  Fields in error messages are named
// after the struct tag tagName (i.e. "json" or "toml"); if the field has no
// such tag, the Go field name is used.
func NewValidation(tagName string) *Validation {
	v := validator.New(validator.WithRequiredStructEnabled())
	if tagName != "" {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get(tagName), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	}
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		panic(err)
	}
	return &Validation{Validate: v, trans: trans}
}

// RegisterPattern registers a validation tag that checks a string field
// against the regular expression re.  msg is the english message, where {0}
// is the field name.
func (v *Validation) RegisterPattern(tag string, re *regexp.Regexp, msg string) error {
	if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterTranslation(tag, v.trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, msg, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}

// Translate returns the english messages of validation errors joined with
// "; ".  Other errors are returned as is.
func (v *Validation) Translate(err error) string {
	var vErr validator.ValidationErrors
	if !errors.As(err, &vErr) {
		return err.Error()
	}
	msgs := make([]string, 0, len(vErr))
	for _, fe := range vErr {
		msgs = append(msgs, fe.Translate(v.trans))
	}
	return strings.Join(msgs, "; ")
}

var (
	reToolName = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	reSlackID  = regexp.MustCompile(`^[A-Z][A-Z0-9]{2,}$`)
)

// validation validates the configuration.
var validation = NewValidation("toml")

func init() {
	for _, p := range []struct {
		tag string
		re  *regexp.Regexp
		msg string
	}{
		{"toolname", reToolName, "{0} must contain only letters, digits, underscores and hyphens, up to 64 characters"},
		{"slackid", reSlackID, "{0} must be a Slack ID, i.e. C01234567 or U01234567"},
	} {
		if err := validation.RegisterPattern(p.tag, p.re, p.msg); err != nil {
			panic(err)
		}
	}
}
