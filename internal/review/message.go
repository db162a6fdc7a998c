package review

import (
	"fmt"
	"strings"

	"github.com/zulandar/beartank/internal/models"
	"github.com/zulandar/beartank/internal/notify"
	"github.com/zulandar/beartank/internal/submission"
)

// decisionMessage is the inbox notification for a reviewed submission.
func decisionMessage(sub *models.Submission) notify.Message {
	brandKit := sub.TaskType == models.TaskBrandKit
	subject := subjectOf(sub)

	feedback := ""
	if sub.Feedback.Note != "" {
		feedback = "Feedback: " + sub.Feedback.Note
	}

	msg := notify.Message{SourceID: sub.ID}
	if brandKit {
		msg.Link = "/student/company"
	} else {
		msg.Link = "/student/task/" + deref(sub.TaskID)
	}

	if sub.Status == models.SubmissionApproved {
		msg.Type = notify.TypeTaskApproved
		msg.Title = "Approved: " + subject
		if brandKit {
			msg.Body = "Your brand kit is approved and published."
		} else {
			msg.Body = strings.TrimSpace(fmt.Sprintf("You earned %d Bear Bucks. %s", sub.PointsAwarded, feedback))
		}
		return msg
	}

	msg.Type = notify.TypeTaskNeedsChanges
	msg.Title = "Needs changes: " + subject
	if brandKit {
		msg.Body = strings.TrimSpace("Update your brand kit and resubmit. " + feedback)
	} else {
		msg.Body = strings.TrimSpace("Review feedback and resubmit. " + feedback)
	}
	return msg
}

func subjectOf(sub *models.Submission) string {
	if sub.TaskType == models.TaskBrandKit {
		return submission.BrandKitTitle
	}
	if sub.TaskTitle != "" {
		return sub.TaskTitle
	}
	return "Task update"
}
