package cubeaction

import (
	"context"
	"fmt"

	"github.com/teslashibe/cube-action/pkg/photo"
	"github.com/teslashibe/cube-action/pkg/platform"
)

// Behavior is the scripted routine bound to a cube identity.
type Behavior int

const (
	// BehaviorNone is the no-op for identities without a routine.
	BehaviorNone Behavior = iota

	// BehaviorApproach drives to the tapped cube.
	BehaviorApproach

	// BehaviorPortrait finds a face and saves a greyscale photo of it.
	BehaviorPortrait

	// BehaviorPerformance plays an animation clip.
	BehaviorPerformance
)

// String returns the behavior name used in logs and metric labels.
func (b Behavior) String() string {
	switch b {
	case BehaviorApproach:
		return "approach"
	case BehaviorPortrait:
		return "portrait"
	case BehaviorPerformance:
		return "performance"
	default:
		return "none"
	}
}

// BehaviorFor maps a cube identity to its behavior.
func BehaviorFor(cubeID int) Behavior {
	switch cubeID {
	case 1:
		return BehaviorApproach
	case 2:
		return BehaviorPortrait
	case 3:
		return BehaviorPerformance
	default:
		return BehaviorNone
	}
}

// Spoken lines.
const (
	lineScanning    = "Scanning for cubes"
	lineFound       = "I found the cubes"
	lineTapPrompt   = "Tap each cube to perform an action"
	lineApproach    = "I will move to the cube"
	lineMovedFmt    = "Moved to cube %d"
	linePortrait    = "You tapped the picture cube, smile!"
	linePortraitEnd = "You look great! I saved the image for you."
)

func (c *Controller) perform(ctx context.Context, b Behavior, cube platform.Object) error {
	switch b {
	case BehaviorApproach:
		return c.approach(ctx, cube)
	case BehaviorPortrait:
		return c.portrait(ctx)
	case BehaviorPerformance:
		return c.performance(ctx)
	default:
		c.log.Debug("no behavior bound to cube", "cube", cube.CubeID())
		return nil
	}
}

func (c *Controller) approach(ctx context.Context, cube platform.Object) error {
	if err := c.say(ctx, lineApproach); err != nil {
		return err
	}
	if err := c.robot.GoToObject(ctx, cube, c.settings.StandoffMM); err != nil {
		return fmt.Errorf("go to cube %d: %w", cube.CubeID(), err)
	}
	return c.say(ctx, fmt.Sprintf(lineMovedFmt, cube.CubeID()))
}

func (c *Controller) portrait(ctx context.Context) error {
	if err := c.say(ctx, linePortrait); err != nil {
		return err
	}

	findFaces, err := c.robot.StartBehavior(ctx, platform.FindFaces)
	if err != nil {
		return fmt.Errorf("start %s: %w", platform.FindFaces, err)
	}
	face, waitErr := c.robot.WaitForFace(ctx, c.settings.FaceTimeout)
	stopErr := c.stopBehavior(ctx, findFaces)
	if waitErr != nil {
		return fmt.Errorf("wait for face: %w", waitErr)
	}
	if stopErr != nil {
		return stopErr
	}
	c.log.Info("face found", "face", face.ID)

	if err := c.robot.TurnTowardsFace(ctx, face); err != nil {
		return fmt.Errorf("turn towards face: %w", err)
	}

	img, err := c.robot.LatestImage(ctx)
	if err != nil {
		return fmt.Errorf("latest image: %w", err)
	}
	if err := photo.SaveGreyscalePNG(img, c.settings.PhotoPath); err != nil {
		return err
	}
	c.log.Info("photo saved", "path", c.settings.PhotoPath)

	return c.say(ctx, linePortraitEnd)
}

func (c *Controller) performance(ctx context.Context) error {
	if err := c.robot.PlayAnimation(ctx, c.settings.Animation); err != nil {
		return fmt.Errorf("play %s: %w", c.settings.Animation, err)
	}
	return nil
}

func (c *Controller) say(ctx context.Context, text string) error {
	if err := c.robot.Say(ctx, text, c.settings.SpeechScalar); err != nil {
		return fmt.Errorf("say %q: %w", text, err)
	}
	return nil
}

// stopBehavior stops b even if ctx is already done.
func (c *Controller) stopBehavior(ctx context.Context, b platform.Behavior) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := b.Stop(sctx); err != nil {
		return fmt.Errorf("stop %s: %w", b.Type(), err)
	}
	return nil
}
