// Package vidflow is a client for an asynchronous video processing backend.
//
// The backend accepts download, cut and transcription jobs, answers with a
// task id, and later serves the finished file. vidflow submits the job, polls
// its status until it reaches a terminal state, and retrieves the artifact.
//
// Overview
//
// The work is split between three roles in package task:
//
//   - Submitter: POSTs a job and extracts its task handle
//   - Tracker: polls a status endpoint and publishes Snapshots
//   - Materializer: fetches the artifact of a successful job
//
// Package media binds them to the backend's workflows (video, audio,
// fragment, download_fragment and transcript) and adds the catalog and
// login calls.
//
// Quick Start
//
// Download the audio track of a video:
//
//	client := vidflow.NewClient("http://localhost:5000/api", vhttp.StaticToken(token))
//	res, err := client.Run(ctx, media.Audio, media.AudioRequest(url), media.RunOptions{
//		AutoSave:  true,
//		OutputDir: ".",
//		OnUpdate: func(s task.Snapshot) {
//			fmt.Printf("%s %.0f%%\n", s.State, s.Progress)
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println("saved to", res.Path)
//
// Track a job submitted elsewhere:
//
//	tr, err := client.Track(ctx, media.Video, task.Handle{ID: taskID})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer tr.Close()
//	snap, err := tr.Wait(ctx)
//
// Configuration
//
// The vidflow command loads settings from several sources:
//
//  1. Environment variables (highest priority)
//  2. Config file (vidflow.json or vidflow.yaml in the working directory,
//     then ~/.config/vidflow/)
//  3. Default values (lowest priority)
//
// Environment variables:
//
//   - VIDFLOW_BASE_URL: Backend API root
//   - VIDFLOW_TOKEN: Access token, used instead of the token file
//   - VIDFLOW_TOKEN_FILE: Where login stores the token
//   - VIDFLOW_HISTORY_FILE: Download history file
//   - VIDFLOW_OUTPUT_DIR: Where artifacts are saved
//   - VIDFLOW_TIMEOUT: Timeout of a single request
//   - VIDFLOW_POLL_INTERVAL: Status cadence for every workflow
//   - VIDFLOW_MAX_ATTEMPTS: Status request budget for every workflow
//   - VIDFLOW_MAX_RETRIES: Retry attempts for catalog reads
//
// Error Handling
//
// A job can fail in distinct ways, each with its own sentinel:
//
//	switch {
//	case errors.Is(err, vidflow.ErrSubmitFailed):
//		// the job never started
//	case errors.Is(err, vidflow.ErrJobFailed):
//		// the backend reported FAILURE
//	case errors.Is(err, vidflow.ErrStatusCheck):
//		// a status request failed
//	case errors.Is(err, vidflow.ErrArtifactUnavailable):
//		// the job succeeded but its file could not be fetched
//	}
//
// Authentication failures match ErrUnauthorized in all of them.
//
// Advanced Usage
//
// For more control, use the sub-packages directly:
//
//   - task: Submitter, Tracker, Materializer and the status decoder
//   - media: Workflow definitions, catalog and auth
//   - http: Retrying, rate limited HTTP client with bearer credentials
package vidflow
