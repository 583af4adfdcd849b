package ai

import (
	"fmt"
	"strings"

	"github.com/hamdamapp/backend/internal/model/profile"
)

const basePrompt = "You are Hamdam, a warm and reassuring pregnancy and cycle companion. " +
	"Answer briefly, in plain language, and never give a medical diagnosis; " +
	"suggest contacting a doctor or midwife for anything urgent."

const partnerPrompt = "You are talking to the partner of the expecting user. " +
	"Help them understand what their partner is going through and how to support her."

// BuildSystemPrompt folds the known profile fields into the system prompt.
// Fields absent for the current life stage are left out entirely.
func BuildSystemPrompt(prof profile.Context) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if prof.IsPartnerChannel {
		b.WriteString("\n\n")
		b.WriteString(partnerPrompt)
	}

	facts := make([]string, 0, 7)
	if prof.Name != "" {
		facts = append(facts, fmt.Sprintf("The user's name is %s.", prof.Name))
	}
	if prof.PregnancyWeek > 0 {
		facts = append(facts, fmt.Sprintf("The pregnancy is in week %d.", prof.PregnancyWeek))
	}
	if prof.DueDate != "" {
		facts = append(facts, fmt.Sprintf("The due date is %s.", prof.DueDate))
	}
	if prof.BabyName != "" {
		facts = append(facts, fmt.Sprintf("The baby's name is %s.", prof.BabyName))
	}
	if prof.BabyBirthDate != "" {
		facts = append(facts, fmt.Sprintf("The baby was born on %s.", prof.BabyBirthDate))
	}
	if prof.LastPeriodDate != "" {
		facts = append(facts, fmt.Sprintf("The last period started on %s.", prof.LastPeriodDate))
	}
	if prof.CycleLength > 0 {
		facts = append(facts, fmt.Sprintf("The cycle length is %d days.", prof.CycleLength))
	}

	if len(facts) > 0 {
		b.WriteString("\n\nWhat you know about the user:\n- ")
		b.WriteString(strings.Join(facts, "\n- "))
	}

	return b.String()
}
