package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/kabina/kabinaview/internal/core/domain"
)

// positionField resolves a coordinate to null when either axis is missing.
func positionField(geoPointType *graphql.Object, get func(src any) (domain.GeoCoordinate, bool)) *graphql.Field {
	return &graphql.Field{
		Type: geoPointType,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			c, ok := get(p.Source)
			if !ok || !c.Valid() {
				return nil, nil
			}
			return map[string]interface{}{"lon": c.Lon, "lat": c.Lat}, nil
		},
	}
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	entityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Entity",
		Fields: graphql.Fields{
			"kind":   &graphql.Field{Type: graphql.String},
			"id":     &graphql.Field{Type: graphql.Int},
			"status": &graphql.Field{Type: graphql.Int},
			"position": positionField(geoPointType, func(src any) (domain.GeoCoordinate, bool) {
				e, ok := src.(domain.EntitySnapshot)
				return e.Position, ok
			}),
		},
	})

	stopType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stop",
		Fields: graphql.Fields{
			"id":      &graphql.Field{Type: graphql.Int},
			"name":    &graphql.Field{Type: graphql.String},
			"bearing": &graphql.Field{Type: graphql.Int},
			"position": positionField(geoPointType, func(src any) (domain.GeoCoordinate, bool) {
				s, ok := src.(domain.StopRecord)
				return s.Position, ok
			}),
		},
	})

	legType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Leg",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.Int},
			"route_id":     &graphql.Field{Type: graphql.Int},
			"place":        &graphql.Field{Type: graphql.Int},
			"from_stand":   &graphql.Field{Type: graphql.Int},
			"to_stand":     &graphql.Field{Type: graphql.Int},
			"status":       &graphql.Field{Type: graphql.Int},
			"distance":     &graphql.Field{Type: graphql.Int},
			"started_at":   &graphql.Field{Type: graphql.DateTime},
			"completed_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	nodeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteNode",
		Fields: graphql.Fields{
			"stand":     &graphql.Field{Type: graphql.Int},
			"place":     &graphql.Field{Type: graphql.Int},
			"highlight": &graphql.Field{Type: graphql.Boolean},
		},
	})

	edgeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteEdge",
		Fields: graphql.Fields{
			"from":   &graphql.Field{Type: graphql.Int},
			"to":     &graphql.Field{Type: graphql.Int},
			"status": &graphql.Field{Type: graphql.Int},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.Int},
			"distance":      &graphql.Field{Type: graphql.Int},
			"length_meters": &graphql.Field{Type: graphql.Int},
			"legs":          &graphql.Field{Type: graphql.NewList(legType)},
			"nodes":         &graphql.Field{Type: graphql.NewList(nodeType)},
			"edges":         &graphql.Field{Type: graphql.NewList(edgeType)},
			"final":         &graphql.Field{Type: edgeType},
		},
	})

	routeSummaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteSummary",
		Fields: graphql.Fields{
			"index":    &graphql.Field{Type: graphql.Int},
			"route_id": &graphql.Field{Type: graphql.Int},
		},
	})

	orderType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Order",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.Int},
			"from_stand": &graphql.Field{Type: graphql.Int},
			"to_stand":   &graphql.Field{Type: graphql.Int},
			"max_wait":   &graphql.Field{Type: graphql.Int},
			"max_loss":   &graphql.Field{Type: graphql.Int},
			"distance":   &graphql.Field{Type: graphql.Int},
			"leg_id":     &graphql.Field{Type: graphql.Int},
			"eta":        &graphql.Field{Type: graphql.Int},
			"received":   &graphql.Field{Type: graphql.DateTime},
			"started":    &graphql.Field{Type: graphql.DateTime},
			"completed":  &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Assemble a route; order highlights that order's stands",
				Args: graphql.FieldConfigArgument{
					"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"order": &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					routeID := int64(p.Args["id"].(int))
					var focus *domain.OrderEndpoints
					if o, ok := p.Args["order"].(int); ok && o > 0 {
						ep, err := deps.Routes.Focus(p.Context, int64(o))
						if err != nil && !isNotFound(err) {
							return nil, err
						}
						if ep != nil && ep.RouteID == routeID {
							focus = ep
						}
					}
					route, _, err := deps.Routes.Route(p.Context, routeID, focus)
					if isNotFound(err) {
						return nil, nil
					}
					return route, err
				},
			},
			"routes": &graphql.Field{
				Type:        graphql.NewList(routeSummaryType),
				Description: "The route browser index, 1-based",
				Args: graphql.FieldConfigArgument{
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					offset := p.Args["offset"].(int)
					limit := p.Args["limit"].(int)
					ids, err := deps.Routes.RouteIDs(p.Context)
					if err != nil {
						return nil, err
					}
					out := []RouteSummary{}
					for i := max(offset, 0); i < len(ids) && i < offset+limit; i++ {
						out = append(out, RouteSummary{Index: i + 1, RouteID: ids[i]})
					}
					return out, nil
				},
			},
			"entities": &graphql.Field{
				Type:        graphql.NewList(entityType),
				Description: "Current cabs, orders or stops",
				Args: graphql.FieldConfigArgument{
					"kind": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					kind, err := domain.ParseEntityKind(p.Args["kind"].(string))
					if err != nil {
						return nil, err
					}
					return deps.Entities.Entities(p.Context, kind)
				},
			},
			"stops": &graphql.Field{
				Type:        graphql.NewList(stopType),
				Description: "Every stand with its bearing",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Routes.Stops(p.Context)
				},
			},
			"routeOrders": &graphql.Field{
				Type:        graphql.NewList(orderType),
				Description: "Orders served by a route",
				Args: graphql.FieldConfigArgument{
					"route_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Routes.Orders(p.Context, int64(p.Args["route_id"].(int)))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
