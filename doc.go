/*
Package condense implements the Condensation algorithm, a particle filter
for tracking a small moving object such as a ping-pong ball across a
sequence of timestamped video frames.

The belief about the object position is represented by a fixed size
ensemble of weighted particles.  Each cycle propagates the particles with
a constant velocity motion model, weighs every particle by comparing a
grayscale histogram of the image patch under it against the immutable
target histogram (Hellinger distance pushed through a gaussian kernel),
emits a weighted mean track estimate and regenerates the ensemble by
systematic resampling.  The filter is robust to partial occlusion, motion
blur and background clutter as long as the target keeps a distinctive
intensity signature.

See example code and usage in the example subdirectory.
*/
package condense
