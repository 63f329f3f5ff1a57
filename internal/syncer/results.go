package syncer

// PullResult summarises one pull step for one server.
type PullResult struct {
	// FailedBookIDs lists books whose server state could not be applied.
	FailedBookIDs []string `json:"failed_book_ids,omitempty"`
	// Pulled counts local rows inserted, updated or linked from the server.
	Pulled int `json:"pulled"`
	// Deleted counts local rows removed because the server no longer has them.
	Deleted int `json:"deleted"`
	// Err is set when the step could not start at all.
	Err error `json:"-"`
}

func (r *PullResult) fail(bookID string) {
	for _, id := range r.FailedBookIDs {
		if id == bookID {
			return
		}
	}
	r.FailedBookIDs = append(r.FailedBookIDs, bookID)
}

// PushResult summarises one push step for one server.
type PushResult struct {
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Deleted int `json:"deleted"`
	// Err is set when the step could not start at all.
	Err error `json:"-"`
}

// Totals is the aggregate count reported for a cycle or a server.
type Totals struct {
	Pulled  int `json:"pulled"`
	Pushed  int `json:"pushed"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

func (t *Totals) addPull(r PullResult) {
	t.Pulled += r.Pulled
	t.Deleted += r.Deleted
	t.Failed += len(r.FailedBookIDs)
}

func (t *Totals) addPush(r PushResult) {
	t.Pushed += r.Synced
	t.Deleted += r.Deleted
	t.Failed += r.Failed
}

func (t *Totals) add(o Totals) {
	t.Pulled += o.Pulled
	t.Pushed += o.Pushed
	t.Deleted += o.Deleted
	t.Failed += o.Failed
}
