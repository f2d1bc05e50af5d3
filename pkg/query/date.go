/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package query

import (
	"strconv"
	"strings"
	"time"
)

// Supported get_age date formats.
const (
	FormatDDMMYYYY = "DD/MM/YYYY"
	FormatMMDDYYYY = "MM/DD/YYYY"
)

const dateDelimiters = "/-."

// LocalDate is a calendar date without time zone.
type LocalDate struct {
	Day   uint8
	Month uint8
	Year  uint16
}

// ParseDate parses s with one of the supported formats. Any of '/', '-' or '.' is accepted as delimiter.
func ParseDate(s, format string) (LocalDate, bool) {
	first := strings.IndexAny(s, dateDelimiters)
	last := strings.LastIndexAny(s, dateDelimiters)

	if first < 0 || first == last {
		return LocalDate{}, false
	}

	a, errA := strconv.ParseUint(s[:first], 10, 8)
	b, errB := strconv.ParseUint(s[first+1:last], 10, 8)
	y, errY := strconv.ParseUint(s[last+1:], 10, 16)

	if errA != nil || errB != nil || errY != nil {
		return LocalDate{}, false
	}

	var d LocalDate

	switch format {
	case FormatDDMMYYYY:
		d = LocalDate{Day: uint8(a), Month: uint8(b), Year: uint16(y)}
	case FormatMMDDYYYY:
		d = LocalDate{Day: uint8(b), Month: uint8(a), Year: uint16(y)}
	default:
		return LocalDate{}, false
	}

	if d.Day < 1 || d.Day > 31 || d.Month < 1 || d.Month > 12 {
		return LocalDate{}, false
	}

	return d, true
}

// DateOf returns the calendar date of t in its location.
func DateOf(t time.Time) LocalDate {
	return LocalDate{Day: uint8(t.Day()), Month: uint8(t.Month()), Year: uint16(t.Year())}
}

// Pack encodes the date as (year<<9)|(month<<5)|day.
func (d LocalDate) Pack() uint32 {
	return uint32(d.Year)<<9 | uint32(d.Month)<<5 | uint32(d.Day)
}

// UnpackDate reverses LocalDate.Pack.
func UnpackDate(v uint32) LocalDate {
	return LocalDate{
		Day:   uint8(v & 0x1f),
		Month: uint8((v >> 5) & 0xf),
		Year:  uint16((v >> 9) & 0xffff),
	}
}

// AgeBetween returns the number of whole years between two dates, in either order.
func AgeBetween(a, b LocalDate) int64 {
	earlier, later := a, b
	if a.Pack() > b.Pack() {
		earlier, later = b, a
	}

	age := int64(later.Year) - int64(earlier.Year)

	if later.Month < earlier.Month || (later.Month == earlier.Month && later.Day < earlier.Day) {
		if age > 0 {
			age--
		}
	}

	return age
}
