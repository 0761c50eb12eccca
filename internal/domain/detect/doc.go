// Package detect provides the HLS stream detection engine.
//
// A detection run drives one disposable browser session against an embed page,
// watches its network traffic for .m3u8 URLs, tries to start playback and ranks
// what it saw. Sessions are never pooled or shared: each run creates its own and
// closes it before returning.
//
// Run Phases:
//  1. Acquire: admission slot, then a fresh session from the Engine
//  2. Navigate: load the target until DOMContentLoaded, bounded by Request.Timeout
//  3. Trigger: click the first matching play control from the trigger table
//  4. Settle: wait Request.Settle while traffic is still observed
//  5. Fallback: click the <video> element if nothing was seen yet
//  6. Release: close page, context and browser process
//  7. Rank: master playlists first, discovery order otherwise
//
// Errors:
//   - ErrEngineUnavailable: no browser automation capability was initialized
//   - ErrSessionAcquisition: the browser process could not be launched
//   - ErrBusy: no admission slot became free in time
//
// Navigation and interaction failures never surface as errors; they only lower
// the quality of the result.
//
// Example Usage:
//
//	detector := detect.NewDetector(engine, detect.DefaultSettings(), logger, metrics)
//	result, err := detector.Detect(ctx, detect.NewRequest("https://example.com/embed/42"))
//	if err == nil && result.Primary != nil {
//		fmt.Println(result.Primary.URL)
//	}
package detect
