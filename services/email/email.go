package emailsvc

import "github.com/trezcool/classfund/core"

// New prints emails in debug or when no SendGrid key is set, and sends them through SendGrid otherwise.
func New(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return NewConsoleService(conf, logger)
	}
	return NewSendgridService(conf, logger)
}
