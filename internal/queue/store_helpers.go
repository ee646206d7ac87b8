package queue

import "fmt"

const itemColumns = "fingerprint, created_at, work_type, payload"

func scanItem(scanner interface{ Scan(dest ...any) error }) (WorkItem, error) {
	var item WorkItem
	if err := scanner.Scan(&item.Fingerprint, &item.CreatedAt, &item.WorkType, &item.Payload); err != nil {
		return WorkItem{}, err
	}
	return item, nil
}

func validateState(state State) error {
	for _, known := range allStates {
		if state == known {
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", state)
}
