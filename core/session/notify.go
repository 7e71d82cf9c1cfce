package session

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/analysis"
)

const summaryTemplate = "session_summary"

type summaryEmailData struct {
	SessionID    string
	StudentName  string
	CourseName   string
	TopicName    string
	SummaryMd    string
	KeyTakeaways []string
	Citations    []string
}

// notifyGuardians emails the session summary to the student's guardians.
// Failures are logged; the session is already summarized at this point.
func (svc *Service) notifyGuardians(ctx context.Context, sess Session, sum analysis.SummaryResult) {
	if svc.Mail == nil || sess.StudentID == nil {
		return
	}
	msg, err := svc.summaryMessage(ctx, sess, sum)
	if err != nil {
		svc.Logger.Warn(fmt.Sprintf("notifying guardians of session %s", sess.ID), err, sess.LogFields())
		return
	}
	if msg != nil {
		svc.Mail.SendMessages(msg)
	}
}

func (svc *Service) summaryMessage(ctx context.Context, sess Session, sum analysis.SummaryResult) (*core.EmailMessage, error) {
	guardians, err := svc.Users.ListGuardians(ctx, *sess.StudentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing guardians")
	}
	to := make([]mail.Address, 0, len(guardians))
	for _, g := range guardians {
		if addr, ok := g.Address(); ok {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return nil, nil
	}

	student, err := svc.Users.GetStudent(ctx, *sess.StudentID)
	if err != nil {
		return nil, errors.Wrap(err, "getting student")
	}
	crs, err := svc.Courses.GetCourse(ctx, sess.CourseID)
	if err != nil {
		return nil, errors.Wrap(err, "getting course")
	}
	topic, err := svc.Courses.GetTopic(ctx, sess.CourseID, sess.TopicID)
	if err != nil {
		return nil, errors.Wrap(err, "getting topic")
	}

	return &core.EmailMessage{
		To:           to,
		Subject:      fmt.Sprintf("%s: session summary for %s", student.FullName, topic.Name),
		TemplateName: summaryTemplate,
		TemplateData: summaryEmailData{
			SessionID:    sess.ID,
			StudentName:  student.FullName,
			CourseName:   crs.Name,
			TopicName:    topic.Name,
			SummaryMd:    sum.SummaryMd,
			KeyTakeaways: sum.KeyTakeaways,
			Citations:    sum.Citations,
		},
	}, nil
}
