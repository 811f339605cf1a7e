// Package alert delivers capacity-breach notifications. Tasks are one-shot:
// a single detached send attempt, no retry, no dedup. A room that oscillates
// across its capacity boundary alerts once per upward crossing with no
// debounce.
package alert

import (
	"bytes"
	"fmt"
	"html/template"
)

// Task is an immutable unit of alert work.
type Task struct {
	ClassID   string
	ClassName string
	Occupancy int
	Capacity  int
}

// Subject renders the alert mail subject.
func (t Task) Subject() string {
	return fmt.Sprintf("Capacity Alert: %s (%s)", t.ClassName, t.ClassID)
}

// Dispatcher schedules exactly one send attempt per enqueued task, detached
// from the caller's completion.
type Dispatcher interface {
	Enqueue(task Task)
}

var bodyTmpl = template.Must(template.New("alert").Parse(`<html>
<body>
    <h3>Classroom Capacity Exceeded</h3>
    <p>
        The classroom <strong>{{.ClassName}}</strong> (ID: {{.ClassID}})
        has exceeded its allowed capacity.
    </p>
    <p>
        <strong>Occupancy:</strong> {{.Occupancy}}<br>
        <strong>Capacity:</strong> {{.Capacity}}
    </p>
    <p>
        Please take immediate action.
    </p>
    <br>
    <p>Smart Classroom System</p>
</body>
</html>
`))

// Body renders the alert mail HTML body.
func (t Task) Body() (string, error) {
	var buf bytes.Buffer
	if err := bodyTmpl.Execute(&buf, t); err != nil {
		return "", fmt.Errorf("rendering alert body: %w", err)
	}
	return buf.String(), nil
}
