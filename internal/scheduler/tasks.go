// Package scheduler queues delayed referral requests on asynq and runs the
// worker that sends them.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-triage/internal/categoryb"
)

// TaskReferralSend sends a queued referral request.
const TaskReferralSend = "referral:send"

// NewReferralTask encodes job as an asynq task.
func NewReferralTask(job categoryb.ReferralJob) (*asynq.Task, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, eris.Wrap(err, "scheduler: marshal referral job")
	}
	return asynq.NewTask(TaskReferralSend, data), nil
}

// ParseReferralTask decodes the job carried by task.
func ParseReferralTask(task *asynq.Task) (categoryb.ReferralJob, error) {
	var job categoryb.ReferralJob
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return categoryb.ReferralJob{}, eris.Wrap(err, "scheduler: unmarshal referral job")
	}
	if job.LeadID == "" || job.Message.Recipient == "" {
		return categoryb.ReferralJob{}, eris.New("scheduler: referral job missing lead or recipient")
	}
	return job, nil
}
