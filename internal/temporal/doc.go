// Package temporal provides the Temporal integration of the paper
// acquisition service: client construction, the maintenance workflow
// client and the worker that serves it.
//
// The service core never schedules anything itself. Periodic health event
// purging and priority recomputation run as the maintenance workflow, which
// an operator or a Temporal schedule starts:
//
//	c, err := temporal.NewClient(temporal.ClientConfig{
//	    HostPort:  "localhost:7233",
//	    Namespace: "paper-acquisition",
//	})
//	if err != nil {
//	    return err
//	}
//	mc := temporal.NewMaintenanceClient(c, "paper-acquisition-maintenance")
//	defer mc.Close()
//
//	result, err := mc.RunMaintenance(ctx, temporal.MaintenanceWorkflowInput{})
//
// Only one maintenance run is open at a time: runs share a fixed workflow
// ID, and starting one while another is open returns
// ErrWorkflowAlreadyStarted.
//
// The workflow and activity definitions live in the workflows and
// activities subpackages.
package temporal
