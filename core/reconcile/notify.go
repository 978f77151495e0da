package reconcile

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/balance"
	"github.com/trezcool/classfund/core/ledger"
)

const dateLayout = "02 Jan 2006"

type paymentEmailData struct {
	StudentName   string
	EventName     string
	Amount        string
	Method        ledger.PaymentMethod
	Pending       string
	BalanceStatus balance.Status
	Date          string
}

func (e *Engine) send(std ledger.Student, subject, tmpl string, data paymentEmailData, attachments ...core.Attachment) {
	if e.mailer == nil || std.Email == "" {
		return
	}
	e.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: std.Name, Address: std.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
		Attachments:  attachments,
	})
}

func (e *Engine) notifySubmitted(std ledger.Student, evt ledger.Event, pmt ledger.Payment) {
	e.send(std, "Payment received: "+evt.Name, "payment_submitted", paymentEmailData{
		StudentName: std.Name,
		EventName:   evt.Name,
		Amount:      pmt.Amount.StringFixed(2),
		Method:      pmt.Method,
		Date:        pmt.PaymentDate.Format(dateLayout),
	})
}

// notifyApproved emails the student its confirmed payment and the balance left. Failures are only logged.
func (e *Engine) notifyApproved(ctx context.Context, pmt ledger.Payment) {
	if e.mailer == nil {
		return
	}
	std, evt, err := loadPair(ctx, e.store, pmt.StudentID, pmt.EventID)
	if err != nil {
		e.logger.Error(fmt.Sprintf("reconcile.notifyApproved(%s): %v", pmt.ID, err), err)
		return
	}
	payments, err := e.store.QueryPayments(ctx, ledger.PaymentFilter{EventID: evt.ID, StudentID: std.ID})
	if err != nil {
		e.logger.Error(fmt.Sprintf("reconcile.notifyApproved(%s): %v", pmt.ID, err), err)
		return
	}
	bal := balance.Compute(evt.Cost, payments)

	var attachments []core.Attachment
	if e.statements != nil && std.Email != "" {
		at, err := e.statements.StatementAttachment(ctx, std.ID)
		if err != nil {
			e.logger.Error(fmt.Sprintf("reconcile.notifyApproved(%s): attaching statement: %v", pmt.ID, err), err)
		} else {
			attachments = append(attachments, at)
		}
	}
	e.send(std, "Payment confirmed: "+evt.Name, "payment_approved", paymentEmailData{
		StudentName:   std.Name,
		EventName:     evt.Name,
		Amount:        pmt.Amount.StringFixed(2),
		Method:        pmt.Method,
		Pending:       bal.Pending.StringFixed(2),
		BalanceStatus: bal.Status,
		Date:          pmt.PaymentDate.Format(dateLayout),
	}, attachments...)
}

func (e *Engine) notifyPrint(std ledger.Student, evt ledger.Event, pd ledger.PrintDistribution) {
	e.send(std, "Print handed out: "+evt.Name, "print_distributed", paymentEmailData{
		StudentName: std.Name,
		EventName:   evt.Name,
		Date:        pd.DistributedAt.Format(dateLayout),
	})
}
