package notify

import (
	"context"
	"fmt"

	commonaws "coaching-notifier/internal/common/aws"
	"coaching-notifier/internal/common/config"
)

// BuildHandlers returns one handler per channel enabled in cfg, in-app
// first. AWS credentials are only resolved when SES or SNS is in use.
func BuildHandlers(ctx context.Context, cfg *config.Config, w InboxWriter, deps Dependencies) ([]*Handler, error) {
	n := cfg.Notifications
	var handlers []*Handler

	if n.InApp.Enabled {
		handlers = append(handlers, NewInAppHandler(w, deps))
	}

	useSES := n.Email.Enabled && n.Email.Provider == config.EmailProviderSES
	if useSES || n.SMS.Enabled {
		awsCfg, err := commonaws.LoadConfig(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, err
		}
		if useSES {
			source := n.Email.FromEmail
			if n.Email.FromName != "" {
				source = fmt.Sprintf("%s <%s>", n.Email.FromName, n.Email.FromEmail)
			}
			ses := cfg.Integrations.AWS.SES
			mailer := NewSESMailer(commonaws.NewSESClient(awsCfg), source, ses.SendRate, ses.SendBurst)
			handlers = append(handlers, NewEmailHandler(mailer, deps))
		}
		if n.SMS.Enabled {
			client := commonaws.NewSNSClient(awsCfg)
			handlers = append(handlers, NewSMSHandler(client, cfg.Integrations.AWS.SNS.SenderID, deps))
		}
	}

	if n.Email.Enabled && n.Email.Provider == config.EmailProviderSMTP {
		smtp := cfg.Integrations.SMTP
		handlers = append(handlers, NewEmailHandler(NewSMTPMailer(SMTPConfig{
			Host:      smtp.Host,
			Port:      smtp.Port,
			Username:  smtp.Username,
			Password:  smtp.Password,
			UseTLS:    smtp.UseTLS,
			FromEmail: n.Email.FromEmail,
			FromName:  n.Email.FromName,
		}), deps))
	}

	if n.Email.Enabled && n.Email.Provider != config.EmailProviderSES && n.Email.Provider != config.EmailProviderSMTP {
		return nil, fmt.Errorf("unsupported email provider %q", n.Email.Provider)
	}
	return handlers, nil
}
