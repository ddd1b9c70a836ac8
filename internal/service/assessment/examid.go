package assessment

import (
	"fmt"
	"time"

	"github.com/cellcare/cellcare_backend/pkg/util/codes"
)

const examIDSuffixDigits = 4

// GenerateMedicalExamID mints an exam id for a visit on now's calendar day:
// YYMMDD followed by four random digits. Uniqueness is not guaranteed.
func GenerateMedicalExamID(now time.Time) string {
	suffix, err := codes.GenerateNumericCode(examIDSuffixDigits)
	if err != nil {
		suffix = fmt.Sprintf("%04d", now.Nanosecond()%10000)
	}
	return now.Format("060102") + suffix
}
