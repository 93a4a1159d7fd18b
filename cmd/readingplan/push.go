package main

import (
	"fmt"

	"github.com/bethesda/readingplan/internal/push"
)

// ReminderFlags configure Web Push reading reminders. Reminders are off
// until both VAPID keys are set.
type ReminderFlags struct {
	VAPIDPublicKey  string `help:"VAPID public key for Web Push." env:"READINGPLAN_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `help:"VAPID private key for Web Push." env:"READINGPLAN_VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string `help:"Contact address sent to push services." env:"READINGPLAN_VAPID_SUBSCRIBER" default:"mailto:admin@localhost"`
	ReminderAt      string `help:"Daily reminder time (HH:MM) in the plan time zone." env:"READINGPLAN_REMINDER_AT" default:"07:00"`
}

func (f ReminderFlags) service() *push.Service {
	return push.NewService(f.VAPIDPublicKey, f.VAPIDPrivateKey, f.VAPIDSubscriber)
}

type VAPIDKeysCmd struct{}

func (c *VAPIDKeysCmd) Run(g *Globals) error {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	fmt.Printf("READINGPLAN_VAPID_PUBLIC_KEY=%s\n", pub)
	fmt.Printf("READINGPLAN_VAPID_PRIVATE_KEY=%s\n", priv)
	return nil
}
