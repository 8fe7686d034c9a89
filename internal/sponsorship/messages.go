package sponsorship

import (
	"fmt"
	"strings"

	"github.com/dukerupert/giftlink/internal/model"
	"github.com/dukerupert/giftlink/internal/notify"
)

// notifyCreated tells the sponsor and the admin about new sponsorships. It is
// called only after the sponsorships have been committed.
func (m *Manager) notifyCreated(sp model.Sponsorship, codes []string) {
	if m.notifier == nil {
		return
	}
	list := strings.Join(codes, ", ")

	var sponsorText string
	if sp.Status == model.SponsorshipPending {
		sponsorText = fmt.Sprintf("Hi %s,\n\nWe received your request to sponsor %s. We will confirm it shortly.\n",
			sp.Sponsor.Name, list)
	} else {
		sponsorText = fmt.Sprintf("Hi %s,\n\nThank you for sponsoring %s. Your sponsorship is confirmed.\n",
			sp.Sponsor.Name, list)
	}
	m.notifier.Dispatch(sp.Sponsor.Email, notify.Message{
		Subject: "Your Christmas sponsorship",
		Text:    sponsorText,
	})

	if m.cfg.AdminEmail != "" {
		m.notifier.Dispatch(m.cfg.AdminEmail, notify.Message{
			Subject: fmt.Sprintf("New sponsorship: %s", list),
			Text: fmt.Sprintf("%s <%s> sponsored %s (gift preference: %s, status: %s).\n",
				sp.Sponsor.Name, sp.Sponsor.Email, list, sp.GiftPreference, sp.Status),
		})
	}
}

func (m *Manager) notifyConfirmed(sp model.Sponsorship) {
	if m.notifier == nil {
		return
	}
	m.notifier.Dispatch(sp.Sponsor.Email, notify.Message{
		Subject: "Your Christmas sponsorship is confirmed",
		Text:    fmt.Sprintf("Hi %s,\n\nYour sponsorship has been confirmed. Thank you!\n", sp.Sponsor.Name),
	})
}
